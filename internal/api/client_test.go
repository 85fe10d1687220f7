package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestApplyResource(t *testing.T) {
	var gotPath, gotMode, gotAuth string
	var gotBody Resource
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMode = r.URL.Query().Get("mode")
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		json.NewEncoder(w).Encode(Resource{
			Provider: "gcp", Resource: "storage", Name: "b1",
			LifecycleState: "active",
		})
	}))
	defer srv.Close()

	client := New(srv.URL, WithToken("tok-1"))
	res, err := client.ApplyResource(context.Background(), Resource{
		Provider: "gcp", Resource: "storage", Name: "b1",
		Config: map[string]any{"location": "US"},
	}, ModeDeploy)
	if err != nil {
		t.Fatalf("ApplyResource: %v", err)
	}

	if gotPath != "/v1/resources/apply" {
		t.Errorf("path = %q", gotPath)
	}
	if gotMode != "deploy" {
		t.Errorf("mode = %q", gotMode)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody.Config["location"] != "US" {
		t.Errorf("request config = %v", gotBody.Config)
	}
	if res.LifecycleState != "active" {
		t.Errorf("lifecycle state = %q", res.LifecycleState)
	}
}

func TestListResourcesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("provider") != "gcp" || q.Get("resource") != "storage" {
			t.Errorf("query = %v", q)
		}
		if got := q["tag"]; len(got) != 2 || got[0] != "team-a" || got[1] != "prod" {
			t.Errorf("tags = %v", got)
		}
		json.NewEncoder(w).Encode([]Resource{{Provider: "gcp", Resource: "storage", Name: "b1"}})
	}))
	defer srv.Close()

	client := New(srv.URL)
	resources, err := client.ListResources(context.Background(), ListOptions{
		Provider: "gcp", Resource: "storage", Tags: []string{"team-a", "prod"},
	})
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(resources) != 1 || resources[0].ID() != "gcp/storage/b1" {
		t.Errorf("resources = %v", resources)
	}
}

func TestGetResourceNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail": "resource not found"}`)
	}))
	defer srv.Close()

	client := New(srv.URL)
	_, err := client.GetResource(context.Background(), "gcp", "storage", "nope")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want remote not found", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("err = %+v", err)
	}
}

func TestDeleteResourcePath(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := New(srv.URL)
	if err := client.DeleteResource(context.Background(), "gcp", "storage", "b1"); err != nil {
		t.Fatalf("DeleteResource: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/v1/resources/gcp/storage/b1" {
		t.Errorf("%s %s", gotMethod, gotPath)
	}
}

func TestClientTimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := New(srv.URL, WithTimeout(20*time.Millisecond))
	_, err := client.ListResources(context.Background(), ListOptions{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if kind := KindOf(err); kind != KindTimeout {
		t.Errorf("kind = %q, want timeout", kind)
	}
}

func TestPushProvider(t *testing.T) {
	payload := "tarball-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/providers/my-provider/push" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/gzip" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != payload {
			t.Errorf("body = %q", body)
		}
		json.NewEncoder(w).Encode(PushResult{Provider: "my-provider", BuildID: "bld-1", Status: BuildBuilding})
	}))
	defer srv.Close()

	client := New(srv.URL)
	result, err := client.PushProvider(context.Background(), "my-provider", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("PushProvider: %v", err)
	}
	if result.BuildID != "bld-1" {
		t.Errorf("build id = %q", result.BuildID)
	}
}

func TestDeployProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["version"] != "1.2.0" {
			t.Errorf("version = %q", body["version"])
		}
		json.NewEncoder(w).Encode(Deployment{Provider: "my-provider", Version: "1.2.0", Status: "deployed"})
	}))
	defer srv.Close()

	client := New(srv.URL)
	dep, err := client.DeployProvider(context.Background(), "my-provider", "1.2.0")
	if err != nil {
		t.Fatalf("DeployProvider: %v", err)
	}
	if dep.Status != "deployed" {
		t.Errorf("status = %q", dep.Status)
	}
}
