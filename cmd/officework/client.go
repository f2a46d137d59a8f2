package main

import (
	"context"
	"fmt"

	"github.com/LilyAva000/office-work/internal/config"
	"github.com/LilyAva000/office-work/internal/editor"
	"github.com/LilyAva000/office-work/internal/gateway"
	"github.com/LilyAva000/office-work/internal/session"
	"github.com/LilyAva000/office-work/internal/storage"
)

// app bundles the client-side collaborators every command needs: the loaded
// config, the durable session store, and the backend gateway.
type app struct {
	cfg   config.Config
	store *storage.Store
	sess  *session.Store
	gw    *gateway.Client
}

// newApp is a variable so tests can substitute a pre-wired app.
var newApp = func() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening session storage: %w", err)
	}

	sess := session.New(store)
	if err := sess.Load(); err != nil {
		store.Close()
		return nil, fmt.Errorf("restoring session: %w", err)
	}

	return &app{
		cfg:   cfg,
		store: store,
		sess:  sess,
		gw:    gateway.New(cfg.Backend.BaseURL),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		printWarning("closing session storage: %v", err)
	}
}

// requireLogin returns the logged-in person id or an actionable error.
func (a *app) requireLogin() (string, error) {
	if !a.sess.IsLoggedIn() {
		return "", fmt.Errorf("not logged in — run `officework login <username>` first")
	}
	return a.sess.PersonID(), nil
}

// withEditor opens an editing session on the current profile, applies fn,
// and commits the result to the backend and the local session.
func (a *app) withEditor(ctx context.Context, fn func(ed *editor.Editor) error) error {
	if _, err := a.requireLogin(); err != nil {
		return err
	}
	doc := a.sess.Profile()
	if doc == nil {
		return fmt.Errorf("no profile in session — run `officework profile refresh`")
	}

	ed := editor.New(a.sess, a.gw)
	if err := ed.BeginEdit(*doc); err != nil {
		return fmt.Errorf("opening edit session: %w", err)
	}

	if err := fn(ed); err != nil {
		if cancelErr := ed.Cancel(); cancelErr != nil {
			printWarning("discarding edit session: %v", cancelErr)
		}
		return err
	}

	return ed.Commit(ctx)
}
