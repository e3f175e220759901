// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/storacha/ucanstream/lib/archive"
	"github.com/storacha/ucanstream/lib/pipeline"
	"github.com/storacha/ucanstream/lib/sqlitepool"
	"github.com/storacha/ucanstream/lib/store"
	"github.com/storacha/ucanstream/lib/stream"
	"github.com/storacha/ucanstream/lib/ucan"
)

const testToken = "handler-test-token"

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, []stream.Record) error { return nil }

func newTestHandler(t *testing.T) (http.Handler, ucan.Signer) {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	blobs, err := store.NewFSBlobStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	pool, err := store.OpenPool(sqlitepool.Config{
		Path:     filepath.Join(dir, "stores.db"),
		PoolSize: 2,
		Logger:   logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pool.Close() })

	self, err := ucan.Generate()
	if err != nil {
		t.Fatal(err)
	}

	processor, err := pipeline.New(pipeline.Config{
		Self:      self,
		AuthToken: testToken,
		Blobs:     blobs,
		Links:     store.NewSQLLinkStore(pool),
		Tasks:     store.NewSQLTaskStore(pool),
		Publisher: nopPublisher{},
		Logger:    logger,
	})
	if err != nil {
		t.Fatal(err)
	}

	return NewHandler(HandlerConfig{Processor: processor, Logger: logger}), self
}

func submitArchive(t *testing.T, handler http.Handler, a *archive.Archive, token string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, "/ucan", bytes.NewReader(a.Bytes))
	if token != "" {
		request.Header.Set("Authorization", "Basic "+token)
	}
	request.Header.Set("Content-Type", archive.ContentType)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func testArchive(t *testing.T, self ucan.Signer) (*archive.Archive, *ucan.Invocation) {
	t.Helper()
	agent, err := ucan.Generate()
	if err != nil {
		t.Fatal(err)
	}
	invocation, err := ucan.Issue(agent, self.DID(), []ucan.Capability{
		{Can: "store/add", With: string(agent.DID())},
	})
	if err != nil {
		t.Fatal(err)
	}
	a, err := archive.Encode([]*ucan.Invocation{invocation}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return a, invocation
}

func TestSubmitArchive(t *testing.T) {
	handler, self := newTestHandler(t)
	a, _ := testArchive(t, self)

	recorder := submitArchive(t, handler, a, testToken)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body)
	}

	var response struct {
		ArchiveCID  string `json:"carCid"`
		Invocations int    `json:"invocations"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if response.ArchiveCID != a.Root.String() {
		t.Errorf("carCid = %s, want %s", response.ArchiveCID, a.Root)
	}
	if response.Invocations != 1 {
		t.Errorf("invocations = %d, want 1", response.Invocations)
	}
}

func TestSubmitStatusCodes(t *testing.T) {
	handler, self := newTestHandler(t)
	a, _ := testArchive(t, self)

	t.Run("missing token", func(t *testing.T) {
		recorder := submitArchive(t, handler, a, "")
		if recorder.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", recorder.Code)
		}
		if recorder.Header().Get("WWW-Authenticate") == "" {
			t.Error("401 response missing WWW-Authenticate")
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		if recorder := submitArchive(t, handler, a, "wrong"); recorder.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", recorder.Code)
		}
	})

	t.Run("wrong content type", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/ucan", bytes.NewReader(a.Bytes))
		request.Header.Set("Authorization", "Basic "+testToken)
		request.Header.Set("Content-Type", "application/json")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", recorder.Code)
		}
	})

	t.Run("undecodable archive", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/ucan", bytes.NewReader([]byte("garbage")))
		request.Header.Set("Authorization", "Basic "+testToken)
		request.Header.Set("Content-Type", archive.ContentType)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", recorder.Code)
		}
	})

	t.Run("unresolvable receipt", func(t *testing.T) {
		orphan, _ := testArchive(t, self)
		receipt, err := ucan.IssueReceipt(self, orphan.Invocations[0].CID(), ucan.Fail("never submitted"))
		if err != nil {
			t.Fatal(err)
		}
		b, err := archive.Encode(nil, []*ucan.Receipt{receipt})
		if err != nil {
			t.Fatal(err)
		}
		if recorder := submitArchive(t, handler, b, testToken); recorder.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", recorder.Code)
		}
	})
}

func TestTaskResultEndpoint(t *testing.T) {
	handler, self := newTestHandler(t)
	a, invocation := testArchive(t, self)

	if recorder := submitArchive(t, handler, a, testToken); recorder.Code != http.StatusOK {
		t.Fatalf("archive submission failed: %d", recorder.Code)
	}

	receipt, err := ucan.IssueReceipt(self, invocation.CID(), ucan.OK(map[string]any{"status": "upload"}))
	if err != nil {
		t.Fatal(err)
	}
	b, err := archive.Encode(nil, []*ucan.Receipt{receipt})
	if err != nil {
		t.Fatal(err)
	}
	if recorder := submitArchive(t, handler, b, testToken); recorder.Code != http.StatusOK {
		t.Fatalf("receipt submission failed: %d", recorder.Code)
	}

	request := httptest.NewRequest(http.MethodGet, "/task/"+receipt.TaskID().String(), nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body)
	}

	var response struct {
		Out struct {
			Ok map[string]any `json:"ok"`
		} `json:"out"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response.Out.Ok["status"] != "upload" {
		t.Errorf("out = %+v", response.Out)
	}
}

func TestTaskResultNotFound(t *testing.T) {
	handler, self := newTestHandler(t)
	a, _ := testArchive(t, self)

	request := httptest.NewRequest(http.MethodGet, "/task/"+a.Invocations[0].CID().String(), nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", recorder.Code)
	}

	request = httptest.NewRequest(http.MethodGet, "/task/not-a-cid", nil)
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status for malformed CID = %d, want 400", recorder.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler, self := newTestHandler(t)

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}

	var response struct {
		Status string `json:"status"`
		DID    string `json:"did"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response.Status != "ok" {
		t.Errorf("status = %q", response.Status)
	}
	if response.DID != string(self.DID()) {
		t.Errorf("did = %q, want %q", response.DID, self.DID())
	}
}
