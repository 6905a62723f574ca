package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
)

type runCall struct {
	Script string
	Args   []string
}

// fakeRunner answers per script and records the calls it saw.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []runCall
	outputs map[string]string
	errs    map[string]error
	onRun   func(script string)
}

func (r *fakeRunner) Run(ctx context.Context, script string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, runCall{Script: script, Args: args})
	r.mu.Unlock()

	if r.onRun != nil {
		r.onRun(script)
	}
	if err, ok := r.errs[script]; ok {
		return nil, err
	}
	return []byte(r.outputs[script]), nil
}

type fakeUploader struct {
	key         string
	contentType string
	data        []byte
}

func (u *fakeUploader) UploadBytes(ctx context.Context, key, contentType string, data []byte) (string, error) {
	u.key, u.contentType, u.data = key, contentType, data
	return "https://cdn.example.com/" + key, nil
}

func newModelApp(svc *ModelService) *fiber.App {
	app := fiber.New()
	app.Get("/api/lol/run-classifier/:puuid/:gameMode", svc.RunClassifier)
	app.Post("/api/predict", svc.Predict)
	app.Get("/api/run-clustering", svc.RunClustering)
	app.Get("/api/lol/feature-importance/:puuid", svc.FeatureImportance)
	app.Get("/api/lol/statistical-analysis", svc.StatisticalAnalysis)
	app.Get("/api/lol/model-runs", svc.ListModelRuns)
	return app
}

func TestRunClassifier_RunsMinerThenClassifier(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		scriptClassifier: `{"accuracy":0.81}`,
	}}
	app := newModelApp(NewModelService(runner, t.TempDir(), nil, nil, quietLogger()))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/lol/run-classifier/puuid-1/ARAM", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"accuracy":0.81}` {
		t.Errorf("unexpected body %s", body)
	}

	want := []runCall{
		{Script: scriptDataMiner, Args: []string{"puuid-1"}},
		{Script: scriptClassifier, Args: []string{"ARAM"}},
	}
	if !reflect.DeepEqual(runner.calls, want) {
		t.Errorf("calls = %+v, want %+v", runner.calls, want)
	}
}

func TestRunClassifier_MinerFailureStopsPipeline(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		scriptDataMiner: &ScriptError{Script: scriptDataMiner, ExitCode: 1},
	}}
	app := newModelApp(NewModelService(runner, t.TempDir(), nil, nil, quietLogger()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/run-classifier/puuid-1/CLASSIC", nil))
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if len(runner.calls) != 1 {
		t.Errorf("classifier should not run after miner failure, calls=%+v", runner.calls)
	}
}

func TestRunClassifier_InvalidJSONOutput(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{scriptClassifier: "Traceback..."}}
	app := newModelApp(NewModelService(runner, t.TempDir(), nil, nil, quietLogger()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/run-classifier/p/CLASSIC", nil))
	if resp.StatusCode != 500 {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

func TestPredict_PassesBodyAsArgument(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{scriptPredict: `{"prediction":"win"}`}}
	app := newModelApp(NewModelService(runner, t.TempDir(), nil, nil, quietLogger()))

	req := httptest.NewRequest("POST", "/api/predict", strings.NewReader(`{"kills":10,"deaths":2}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := runner.calls[0].Args; len(got) != 1 || got[0] != `{"kills":10,"deaths":2}` {
		t.Errorf("unexpected args %v", got)
	}
}

func TestPredict_RejectsInvalidBody(t *testing.T) {
	runner := &fakeRunner{}
	app := newModelApp(NewModelService(runner, t.TempDir(), nil, nil, quietLogger()))

	resp, _ := app.Test(httptest.NewRequest("POST", "/api/predict", strings.NewReader(`not json`)))
	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if len(runner.calls) != 0 {
		t.Error("script should not run for invalid input")
	}
}

func TestRunClustering(t *testing.T) {
	runner := &fakeRunner{}
	app := newModelApp(NewModelService(runner, t.TempDir(), nil, nil, quietLogger()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/run-clustering", nil))
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	runner.errs = map[string]error{scriptClustering: &ScriptError{Script: scriptClustering, ExitCode: 2}}
	resp, _ = app.Test(httptest.NewRequest("GET", "/api/run-clustering", nil))
	if resp.StatusCode != 500 {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

func TestFeatureImportance_SendsAndRemovesImage(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "feature_importance.png")
	runner := &fakeRunner{
		outputs: map[string]string{scriptFeatureAnalysis: `{"image_path":"feature_importance.png"}`},
		onRun: func(script string) {
			if script == scriptFeatureAnalysis {
				_ = os.WriteFile(imagePath, []byte("\x89PNG fake"), 0o644)
			}
		},
	}
	app := newModelApp(NewModelService(runner, dir, nil, nil, quietLogger()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/feature-importance/puuid-1", nil))
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "\x89PNG fake" {
		t.Errorf("unexpected body %q", body)
	}
	if _, err := os.Stat(imagePath); !os.IsNotExist(err) {
		t.Error("image should be removed after sending")
	}
}

func TestFeatureImportance_UploadsWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{
		outputs: map[string]string{scriptFeatureAnalysis: `{"image_path":"chart.png"}`},
		onRun: func(script string) {
			if script == scriptFeatureAnalysis {
				_ = os.WriteFile(filepath.Join(dir, "chart.png"), []byte("img"), 0o644)
			}
		},
	}
	uploader := &fakeUploader{}
	app := newModelApp(NewModelService(runner, dir, uploader, nil, quietLogger()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/feature-importance/puuid-1", nil))
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if !strings.HasPrefix(out["url"], "https://cdn.example.com/analysis/feature-importance/") {
		t.Errorf("unexpected url %q", out["url"])
	}
	if uploader.contentType != "image/png" || string(uploader.data) != "img" {
		t.Errorf("unexpected upload %q %q", uploader.contentType, uploader.data)
	}
	if _, err := os.Stat(filepath.Join(dir, "chart.png")); !os.IsNotExist(err) {
		t.Error("image should be removed after upload")
	}
}

func TestFeatureImportance_ScriptReportedError(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		scriptFeatureAnalysis: `{"error":"not enough matches to analyse"}`,
	}}
	app := newModelApp(NewModelService(runner, t.TempDir(), nil, nil, quietLogger()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/feature-importance/puuid-1", nil))
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var out map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out["error"] != "not enough matches to analyse" {
		t.Errorf("unexpected error body %v", out)
	}
}

func TestFeatureImportance_RejectsPathOutsideScriptsDir(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		scriptFeatureAnalysis: `{"image_path":"../../etc/passwd"}`,
	}}
	app := newModelApp(NewModelService(runner, t.TempDir(), nil, nil, quietLogger()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/feature-importance/puuid-1", nil))
	if resp.StatusCode != 500 {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

func TestStatisticalAnalysis_ReadsResultsFile(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{
		onRun: func(script string) {
			_ = os.WriteFile(filepath.Join(dir, statisticalResultsFile), []byte(`{"image_path":"nemenyi.png"}`), 0o644)
			_ = os.WriteFile(filepath.Join(dir, "nemenyi.png"), []byte("chart"), 0o644)
		},
	}
	app := newModelApp(NewModelService(runner, dir, nil, nil, quietLogger()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/statistical-analysis", nil))
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	for _, name := range []string{statisticalResultsFile, "nemenyi.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should be removed", name)
		}
	}
}

func TestStatisticalAnalysis_MissingResults(t *testing.T) {
	app := newModelApp(NewModelService(&fakeRunner{}, t.TempDir(), nil, nil, quietLogger()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/statistical-analysis", nil))
	if resp.StatusCode != 500 {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

func TestModelRuns_UnavailableWithoutDB(t *testing.T) {
	app := newModelApp(NewModelService(&fakeRunner{}, t.TempDir(), nil, nil, quietLogger()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/model-runs", nil))
	if resp.StatusCode != 503 {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestPipelineError_Timeout(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		scriptClustering: errors.Join(errors.New("script cluster_model.py"), context.DeadlineExceeded),
	}}
	app := newModelApp(NewModelService(runner, t.TempDir(), nil, nil, quietLogger()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/run-clustering", nil))
	if resp.StatusCode != 504 {
		t.Errorf("expected 504, got %d", resp.StatusCode)
	}
}
