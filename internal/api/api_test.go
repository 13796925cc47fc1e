package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erazemk/findit/internal/camera"
	"github.com/erazemk/findit/internal/catalog"
	"github.com/erazemk/findit/internal/db"
	"github.com/erazemk/findit/internal/imaging"
	"github.com/erazemk/findit/internal/store"
)

type testServer struct {
	*httptest.Server
	catalog *catalog.Catalog
	staging *Staging
	camera  *camera.Controller
}

func setupTestServer(t *testing.T, dev camera.Device) *testServer {
	t.Helper()

	database := db.NewTestDB(t)
	cat, err := catalog.Open(t.Context(), store.NewCollection(store.NewSQLite(database)))
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}

	if dev == nil {
		dev = camera.NewStillImage(testImage(64, 48))
	}
	cam := camera.New(dev, camera.Options{})
	staging := NewStaging(0)

	server := httptest.NewServer(LoggingMiddleware(NewRouter(cat, cam, staging)))
	t.Cleanup(server.Close)
	t.Cleanup(cam.Stop)

	return &testServer{Server: server, catalog: cat, staging: staging, camera: cam}
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: 20, G: 120, B: 220, A: 255})
		}
	}
	return img
}

func testDataURL(t *testing.T) string {
	t.Helper()
	p, err := imaging.EncodeFrame(testImage(32, 24), imaging.DefaultQuality)
	if err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return p.DataURL()
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func multipartBody(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func uploadFile(t *testing.T, url string, data []byte) *http.Response {
	t.Helper()

	body, contentType := multipartBody(t, data)
	resp, err := http.Post(url, contentType, body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

type createResponse struct {
	Message string   `json:"message"`
	Item    postView `json:"item"`
}

func createPost(t *testing.T, ts *testServer, desc, location string, tags []string) postView {
	t.Helper()
	resp := doJSON(t, "POST", ts.URL+"/api/posts", map[string]any{
		"image":       testDataURL(t),
		"description": desc,
		"location":    location,
		"tags":        tags,
		"category":    "General",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	return decodeBody[createResponse](t, resp).Item
}

func TestPostsAPIFlow(t *testing.T) {
	ts := setupTestServer(t, nil)

	item := createPost(t, ts, "Black wallet", "Library", []string{"Wallet"})
	if item.ID == "" {
		t.Fatal("expected server-assigned id")
	}
	if item.Status != "Found" {
		t.Errorf("expected default status Found, got %q", item.Status)
	}
	if item.Category != "General" {
		t.Errorf("expected category General, got %q", item.Category)
	}
	if len(item.Tags) != 1 || item.Tags[0] != "Wallet" {
		t.Errorf("expected free tags [Wallet], got %v", item.Tags)
	}
	if item.ImageURL != "/api/posts/"+item.ID+"/image" {
		t.Errorf("unexpected image url %q", item.ImageURL)
	}

	// List.
	resp := doJSON(t, "GET", ts.URL+"/api/posts", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	posts := decodeBody[[]postView](t, resp)
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}

	// Get.
	resp = doJSON(t, "GET", ts.URL+"/api/posts/"+item.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Image with ETag.
	resp = doJSON(t, "GET", ts.URL+item.ImageURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for image, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req, _ := http.NewRequest("GET", ts.URL+item.ImageURL, nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Errorf("expected 304, got %d", resp2.StatusCode)
	}
}

func TestCreatePostValidation(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := doJSON(t, "POST", ts.URL+"/api/posts", map[string]any{
		"description": "Red umbrella",
		"location":    "  ",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	body := decodeBody[errorBody](t, resp)
	if body.Code != "validation_failed" {
		t.Errorf("expected validation_failed, got %q", body.Code)
	}
	if body.Remedy != remedyFixForm {
		t.Errorf("expected remedy %q, got %q", remedyFixForm, body.Remedy)
	}
	for _, field := range []string{"location", "image"} {
		if _, ok := body.Fields[field]; !ok {
			t.Errorf("expected field %q to be reported, got %v", field, body.Fields)
		}
	}

	if ts.catalog.Len() != 0 {
		t.Errorf("expected empty catalog after failed submission, got %d", ts.catalog.Len())
	}
}

func TestCreatePostInvalidImage(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := doJSON(t, "POST", ts.URL+"/api/posts", map[string]any{
		"image":       "data:image/gif;base64,R0lGODlhAQABAAAAACw=",
		"description": "Keys",
		"location":    "Gym",
	})
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", resp.StatusCode)
	}
	if ts.catalog.Len() != 0 {
		t.Errorf("expected empty catalog, got %d", ts.catalog.Len())
	}
}

func TestUploadThenPost(t *testing.T) {
	ts := setupTestServer(t, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(40, 20)); err != nil {
		t.Fatal(err)
	}

	resp := uploadFile(t, ts.URL+"/api/uploads", buf.Bytes())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	staged := decodeBody[stagedResponse](t, resp)
	if staged.MIME != "image/jpeg" || staged.Width != 40 || staged.Height != 20 {
		t.Errorf("unexpected staged payload %+v", staged)
	}
	if !strings.HasPrefix(staged.DataURL, "data:image/jpeg;base64,") {
		t.Errorf("expected jpeg data url, got %.30s", staged.DataURL)
	}

	resp = doJSON(t, "POST", ts.URL+"/api/posts", map[string]any{
		"image_id":    staged.ID,
		"description": "Striped scarf",
		"location":    "Cafeteria",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if _, ok := ts.staging.Get(staged.ID); ok {
		t.Error("expected staged image to be consumed")
	}

	// A consumed id cannot be reused.
	resp = doJSON(t, "POST", ts.URL+"/api/posts", map[string]any{
		"image_id":    staged.ID,
		"description": "Striped scarf",
		"location":    "Cafeteria",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for consumed image id, got %d", resp.StatusCode)
	}
}

func TestUploadTooLarge(t *testing.T) {
	ts := setupTestServer(t, nil)

	payload, contentType := multipartBody(t, make([]byte, 6<<20))
	req := httptest.NewRequest("POST", "/api/uploads", payload)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	ts.Config.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "payload_too_large" {
		t.Errorf("expected payload_too_large, got %q", body.Code)
	}
	if ts.staging.Len() != 0 {
		t.Errorf("expected nothing staged, got %d", ts.staging.Len())
	}
}

func TestSearchAPI(t *testing.T) {
	ts := setupTestServer(t, nil)

	createPost(t, ts, "Blue backpack", "Library", []string{"Keys"})
	createPost(t, ts, "Red wallet", "Cafeteria", []string{"Wallet"})
	createPost(t, ts, "Green bottle", "Main library", []string{"Water Bottle"})

	resp := doJSON(t, "GET", ts.URL+"/api/search?q=WALLET", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	res := decodeBody[searchResponse](t, resp)
	if res.Total != 1 || len(res.Items) != 1 || res.Items[0].Description != "Red wallet" {
		t.Errorf("expected only the wallet, got %+v", res)
	}

	resp = doJSON(t, "GET", ts.URL+"/api/search?location=library&tag=Keys,Water+Bottle", nil)
	res = decodeBody[searchResponse](t, resp)
	if res.Total != 2 {
		t.Errorf("expected 2 library posts, got %d", res.Total)
	}

	resp = doJSON(t, "GET", ts.URL+"/api/search?page=99&page_size=2", nil)
	res = decodeBody[searchResponse](t, resp)
	if res.Page != 2 || res.TotalPages != 2 || len(res.Items) != 1 {
		t.Errorf("expected clamped page 2 of 2 with 1 item, got page %d of %d with %d items",
			res.Page, res.TotalPages, len(res.Items))
	}

	resp = doJSON(t, "GET", ts.URL+"/api/search?sort=sideways", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown sort, got %d", resp.StatusCode)
	}
}

func TestRecentPosts(t *testing.T) {
	ts := setupTestServer(t, nil)

	for _, d := range []string{"one", "two", "three"} {
		createPost(t, ts, d, "Hall", nil)
	}

	resp := doJSON(t, "GET", ts.URL+"/api/posts?limit=2", nil)
	posts := decodeBody[[]postView](t, resp)
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if posts[0].Description != "three" {
		t.Errorf("expected newest first, got %q", posts[0].Description)
	}
}

func TestUpdateStatusDelete(t *testing.T) {
	ts := setupTestServer(t, nil)
	item := createPost(t, ts, "Silver ring", "Gym", []string{"Jewelry"})

	// Update without an image keeps the current one.
	resp := doJSON(t, "PUT", ts.URL+"/api/posts/"+item.ID, map[string]any{
		"description": "Silver ring with stone",
		"location":    "Gym lockers",
		"category":    "Jewelry",
		"status":      "Found",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	updated := decodeBody[createResponse](t, resp).Item
	if updated.ID != item.ID || updated.Location != "Gym lockers" || updated.ImageURL == "" {
		t.Errorf("unexpected updated post %+v", updated)
	}
	if !updated.CreatedAt.Equal(item.CreatedAt) {
		t.Errorf("expected created_at to be kept")
	}

	resp = doJSON(t, "PUT", ts.URL+"/api/posts/"+item.ID+"/status", map[string]string{"status": "Claimed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := decodeBody[postView](t, resp); got.Status != "Claimed" {
		t.Errorf("expected Claimed, got %q", got.Status)
	}

	resp = doJSON(t, "PUT", ts.URL+"/api/posts/"+item.ID+"/status", map[string]string{"status": "Gone"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", resp.StatusCode)
	}

	resp = doJSON(t, "PUT", ts.URL+"/api/posts/"+item.ID+"/status", map[string]string{"status": strings.Repeat("x", 4096)})
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for oversized status body, got %d", resp.StatusCode)
	}

	resp = doJSON(t, "DELETE", ts.URL+"/api/posts/"+item.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, "GET", ts.URL+"/api/posts/"+item.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCameraAPIFlow(t *testing.T) {
	ts := setupTestServer(t, nil)

	// Capture before starting.
	resp := doJSON(t, "POST", ts.URL+"/api/camera/capture", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if body := decodeBody[errorBody](t, resp); body.Remedy != remedyRetryCamera {
		t.Errorf("expected remedy %q, got %q", remedyRetryCamera, body.Remedy)
	}

	resp = doJSON(t, "POST", ts.URL+"/api/camera/session", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if snap := decodeBody[camera.Snapshot](t, resp); snap.State != "active" {
		t.Errorf("expected active, got %q", snap.State)
	}

	resp = doJSON(t, "POST", ts.URL+"/api/camera/capture", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	staged := decodeBody[stagedResponse](t, resp)
	if staged.Width != 64 || staged.Height != 48 {
		t.Errorf("expected native 64x48 frame, got %dx%d", staged.Width, staged.Height)
	}

	resp = doJSON(t, "GET", ts.URL+"/api/camera", nil)
	if snap := decodeBody[camera.Snapshot](t, resp); snap.State != "idle" {
		t.Errorf("expected idle after capture, got %q", snap.State)
	}

	resp = doJSON(t, "POST", ts.URL+"/api/posts", map[string]any{
		"image_id":    staged.ID,
		"description": "Captured phone",
		"location":    "Desk",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}

	resp = doJSON(t, "DELETE", ts.URL+"/api/camera/session", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for stop when idle, got %d", resp.StatusCode)
	}
}

func TestCameraUnavailable(t *testing.T) {
	ts := setupTestServer(t, camera.NewStillFile(t.TempDir()+"/missing.jpg"))

	resp := doJSON(t, "POST", ts.URL+"/api/camera/session", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	body := decodeBody[errorBody](t, resp)
	if body.Code != "device_not_found" {
		t.Errorf("expected device_not_found, got %q", body.Code)
	}
	if body.Remedy != remedyUseUpload {
		t.Errorf("expected remedy %q, got %q", remedyUseUpload, body.Remedy)
	}

	resp = doJSON(t, "GET", ts.URL+"/api/camera", nil)
	if snap := decodeBody[camera.Snapshot](t, resp); snap.State != "error" || snap.Remedy != "upload" {
		t.Errorf("expected error state with upload remedy, got %+v", snap)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := setupTestServer(t, nil)
	createPost(t, ts, "Book", "Library", nil)

	resp := doJSON(t, "GET", ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	health := decodeBody[map[string]any](t, resp)
	if health["records"] != float64(1) {
		t.Errorf("expected 1 record, got %v", health["records"])
	}

	resp = doJSON(t, "GET", ts.URL+"/metrics", nil)
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "findit_catalog_mutations_total") {
		t.Error("expected catalog mutation metric to be exported")
	}
}

func TestSuggestions(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := doJSON(t, "GET", ts.URL+"/api/tags/suggestions", nil)
	body := decodeBody[map[string]any](t, resp)
	categories, _ := body["categories"].([]any)
	if len(categories) != 6 {
		t.Errorf("expected 6 categories, got %v", body["categories"])
	}
}
