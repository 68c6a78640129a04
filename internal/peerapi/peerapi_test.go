package peerapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/synnergy-network/dpos-node/internal/core"
)

func testLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func sampleChain(t *testing.T) (*core.ChainStore, []*core.Block) {
	t.Helper()
	kp, err := core.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	chain, err := core.NewChainStore(8, core.NewMemStorage())
	if err != nil {
		t.Fatalf("NewChainStore: %v", err)
	}
	genesis := core.NewGenesisBlock(1, 0, kp)
	if err := chain.PushBlock(genesis, false); err != nil {
		t.Fatalf("push genesis: %v", err)
	}
	second := &core.Block{Version: 1, Height: 2, PreviousBlockID: genesis.ID, CreatedAt: 10, PayloadHash: core.PayloadHash(nil)}
	core.SignBlock(second, kp)
	if err := chain.PushBlock(second, false); err != nil {
		t.Fatalf("push second: %v", err)
	}
	return chain, []*core.Block{genesis, second}
}

func TestHandleBlocksFromGenesis(t *testing.T) {
	chain, blocks := sampleChain(t)
	srv := New(chain, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/blocks?lastBlockId="+blocks[0].ID.String(), nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleBlocksMalformedIDRejected(t *testing.T) {
	chain, _ := sampleChain(t)
	srv := New(chain, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/blocks?lastBlockId=not-hex", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleCommonRejectsMalformedIDInList(t *testing.T) {
	chain, blocks := sampleChain(t)
	srv := New(chain, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/blocks/common?ids="+blocks[0].ID.String()+",deadbeef", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed id in the list, got %d", rec.Code)
	}
}

func TestHandleCommonNoMatch(t *testing.T) {
	chain, _ := sampleChain(t)
	srv := New(chain, testLogger())

	var unknown core.Hash
	unknown[0] = 0xff
	req := httptest.NewRequest(http.MethodGet, "/blocks/common?ids="+unknown.String(), nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPeerBannedAfterPersistentValidationFailures(t *testing.T) {
	chain, _ := sampleChain(t)
	srv := New(chain, testLogger())

	for i := 0; i < MaxValidationFailures; i++ {
		req := httptest.NewRequest(http.MethodGet, "/blocks?lastBlockId=not-hex", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
	}

	req := httptest.NewRequest(http.MethodGet, "/blocks", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 once banned, got %d", rec.Code)
	}
}
