package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LilyAva000/office-work/internal/profile"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	ContentType string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			Body:        body.String(),
			ContentType: r.Header.Get("Content-Type"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"code":404,"msg":"not found"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *Client {
	c := New(ts.server.URL)
	c.httpClient = ts.server.Client()
	return c
}

var ctx = context.Background()

func TestLogin_Success(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/user/login": `{"code":200,"msg":"登录成功","data":{"username":"lisi"}}`,
	})

	result, err := ts.client().Login(ctx, "lisi", "password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Username != "lisi" {
		t.Errorf("username = %q, want lisi", result.Username)
	}

	r := ts.requests[0]
	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if body["username"] != "lisi" || body["password"] != "password" {
		t.Errorf("login body = %v", body)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/user/login": `{"code":401,"msg":"用户名或密码错误"}`,
	})

	_, err := ts.client().Login(ctx, "lisi", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != 401 {
		t.Errorf("code = %d, want 401", apiErr.Code)
	}
	if apiErr.Message == "" {
		t.Error("application error message lost")
	}
}

func TestFetchProfile(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/info/lisi": `{"code":200,"msg":"ok","data":{"person_id":"lisi","info":{
			"basic_info":{"personal_info":{"姓名":"李四"},"work_info":{}},
			"resume":[],"evaluation":{"2023":"良好"},"rewards":[],"family":[]}}}`,
	})

	doc, err := ts.client().FetchProfile(ctx, "lisi")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if doc.BasicInfo.PersonalInfo["姓名"] != "李四" {
		t.Errorf("姓名 = %q, want 李四", doc.BasicInfo.PersonalInfo["姓名"])
	}
	if doc.Evaluation["2023"] != "良好" {
		t.Errorf("evaluation = %v", doc.Evaluation)
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("fetched document incomplete: %v", err)
	}
}

func TestUpdateProfile_Body(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /api/info/lisi": `{"code":200,"msg":"ok"}`,
	})

	doc := profile.New()
	doc.BasicInfo.PersonalInfo["姓名"] = "李四"
	if err := ts.client().UpdateProfile(ctx, "lisi", doc); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	var body struct {
		PersonInfo profile.Document `json:"person_info"`
	}
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if body.PersonInfo.BasicInfo.PersonalInfo["姓名"] != "李四" {
		t.Errorf("person_info wrapper missing document: %s", ts.requests[0].Body)
	}
}

func TestUploadAvatar(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/info/upload_avatar": `{"code":200,"msg":"ok","data":{"avatar":"static/avatars/abc.png"}}`,
	})

	ref, err := ts.client().UploadAvatar(ctx, "lisi", "me.png", strings.NewReader("fake-png-bytes"))
	if err != nil {
		t.Fatalf("UploadAvatar: %v", err)
	}
	if ref.Avatar != "static/avatars/abc.png" {
		t.Errorf("avatar ref = %q", ref.Avatar)
	}

	r := ts.requests[0]
	if !strings.HasPrefix(r.ContentType, "multipart/form-data") {
		t.Errorf("content type = %q, want multipart", r.ContentType)
	}
	if !strings.Contains(r.Body, "fake-png-bytes") {
		t.Error("file bytes missing from multipart body")
	}
	if !strings.Contains(r.Body, `name="person_id"`) {
		t.Error("person_id field missing from multipart body")
	}
}

func TestListTableTemplates(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/table/list_preview": `{"code":200,"msg":"ok","data":["excel-table.pdf","word-table.pdf"]}`,
	})

	names, err := ts.client().ListTableTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTableTemplates: %v", err)
	}
	if len(names) != 2 || names[0] != "excel-table.pdf" || names[1] != "word-table.pdf" {
		t.Errorf("names = %v", names)
	}
}

func TestPreviewURL_Pure(t *testing.T) {
	c := New("http://127.0.0.1:8008/")
	got := c.PreviewURL("word-table.pdf")
	want := "http://127.0.0.1:8008/api/table/preview/word-table.pdf"
	if got != want {
		t.Errorf("PreviewURL = %q, want %q", got, want)
	}
}

func TestAutoFillTable(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/table/autofill": `{"code":200,"msg":"自动填充处理成功","data":"static/output/excel-table-lisi.xlsx"}`,
	})

	path, err := ts.client().AutoFillTable(ctx, "excel-table.xlsx", []string{"lisi"})
	if err != nil {
		t.Fatalf("AutoFillTable: %v", err)
	}
	if path != "static/output/excel-table-lisi.xlsx" {
		t.Errorf("result path = %q", path)
	}

	var body struct {
		TableName string   `json:"table_name"`
		Persons   []string `json:"persons"`
	}
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if body.TableName != "excel-table.xlsx" || len(body.Persons) != 1 || body.Persons[0] != "lisi" {
		t.Errorf("autofill body = %+v", body)
	}
}

func TestDownload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/static/output/out.xlsx" {
			w.WriteHeader(404)
			return
		}
		w.Write([]byte("artifact-bytes"))
	}))
	defer ts.Close()

	c := New(ts.URL)
	c.httpClient = ts.Client()

	var buf bytes.Buffer
	if err := c.Download(ctx, "static/output/out.xlsx", &buf); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if buf.String() != "artifact-bytes" {
		t.Errorf("downloaded = %q", buf.String())
	}

	var apiErr *APIError
	if err := c.Download(ctx, "static/output/missing.xlsx", &buf); !errors.As(err, &apiErr) {
		t.Errorf("expected *APIError for missing artifact, got %v", err)
	}
}

func TestTransportErrorPropagates(t *testing.T) {
	c := New("http://127.0.0.1:1") // nothing listens here
	_, err := c.ListTableTemplates(ctx)
	if err == nil {
		t.Fatal("expected transport error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("transport failure misreported as application error: %v", err)
	}
}
