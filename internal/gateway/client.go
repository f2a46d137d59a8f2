// Package gateway is the client side of the remote profile API: login,
// profile fetch/update, avatar upload, and the table-template operations.
// Transport failures and application errors both surface to the caller;
// nothing is swallowed at this layer.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/LilyAva000/office-work/internal/profile"
)

// APIError is a non-success application response from the backend: the
// envelope's code and message, uninterpreted.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// envelope is the backend's uniform response shape.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Client communicates with the office-work backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the given backend base URL
// (e.g. "http://127.0.0.1:8008").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LoginResult is the successful outcome of a login call.
type LoginResult struct {
	Username string `json:"username"`
}

// Login authenticates against the backend. Invalid credentials come back as
// an *APIError with the backend's 401 code.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	body := map[string]string{"username": username, "password": password}

	var result LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/user/login", body, &result); err != nil {
		return LoginResult{}, fmt.Errorf("logging in: %w", err)
	}
	return result, nil
}

// fetchProfileData is the data payload of GET /api/info/{id}.
type fetchProfileData struct {
	PersonID string           `json:"person_id"`
	Info     profile.Document `json:"info"`
}

// FetchProfile retrieves the full profile document for a person.
func (c *Client) FetchProfile(ctx context.Context, personID string) (profile.Document, error) {
	var data fetchProfileData
	if err := c.doJSON(ctx, http.MethodGet, "/api/info/"+personID, nil, &data); err != nil {
		return profile.Document{}, fmt.Errorf("fetching profile %s: %w", personID, err)
	}
	return data.Info, nil
}

// UpdateProfile writes a full profile document for a person. Satisfies
// editor.Committer.
func (c *Client) UpdateProfile(ctx context.Context, personID string, doc profile.Document) error {
	body := map[string]any{"person_info": doc}
	if err := c.doJSON(ctx, http.MethodPut, "/api/info/"+personID, body, nil); err != nil {
		return fmt.Errorf("updating profile %s: %w", personID, err)
	}
	return nil
}

// AvatarRef points at an uploaded avatar on the backend.
type AvatarRef struct {
	Avatar string `json:"avatar"`
}

// UploadAvatar sends an avatar image as multipart form data and returns the
// stored reference.
func (c *Client) UploadAvatar(ctx context.Context, personID, filename string, r io.Reader) (AvatarRef, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("person_id", personID); err != nil {
		return AvatarRef{}, fmt.Errorf("building upload form: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return AvatarRef{}, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return AvatarRef{}, fmt.Errorf("reading avatar file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return AvatarRef{}, fmt.Errorf("finalizing upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/info/upload_avatar", &buf)
	if err != nil {
		return AvatarRef{}, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return AvatarRef{}, fmt.Errorf("uploading avatar: %w", err)
	}
	defer resp.Body.Close()

	var ref AvatarRef
	if err := decodeEnvelope(resp, &ref); err != nil {
		return AvatarRef{}, fmt.Errorf("uploading avatar: %w", err)
	}
	return ref, nil
}

// ListTableTemplates returns the names of the document templates available
// for preview and auto-fill, in the backend's order.
func (c *Client) ListTableTemplates(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.doJSON(ctx, http.MethodGet, "/api/table/list_preview", nil, &names); err != nil {
		return nil, fmt.Errorf("listing table templates: %w", err)
	}
	return names, nil
}

// PreviewURL constructs the embedded-preview URL for a template. Pure; no
// network call.
func (c *Client) PreviewURL(templateName string) string {
	return c.baseURL + "/api/table/preview/" + templateName
}

// AutoFillTable asks the backend to fill the named template for the given
// person ids and returns the server-side path of the generated artifact
// (a single file, or a zip when more than one person was requested).
func (c *Client) AutoFillTable(ctx context.Context, tableName string, personIDs []string) (string, error) {
	body := map[string]any{"table_name": tableName, "persons": personIDs}

	var resultPath string
	if err := c.doJSON(ctx, http.MethodPost, "/api/table/autofill", body, &resultPath); err != nil {
		return "", fmt.Errorf("auto-filling %s: %w", tableName, err)
	}
	return resultPath, nil
}

// Download streams a server-side artifact (an autofill result or a preview
// PDF) into w. path may be a server-relative path as returned by
// AutoFillTable.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) error {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Code: resp.StatusCode, Message: fmt.Sprintf("download %s failed", path)}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading download %s: %w", path, err)
	}
	return nil
}

// doJSON performs a JSON request and decodes the envelope's data payload
// into out (when out is non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, out)
}

// decodeEnvelope parses the backend's {code, msg, data} envelope, turning a
// non-200 code into an *APIError and otherwise unmarshalling data into out.
func decodeEnvelope(resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}

	if env.Code != http.StatusOK {
		code := env.Code
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Code: code, Message: env.Msg}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}
