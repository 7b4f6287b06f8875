package rpcServer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/propshare-labs/distributor/internal/config"
	"github.com/propshare-labs/distributor/internal/logger"
	"github.com/propshare-labs/distributor/internal/tests"
	"github.com/propshare-labs/distributor/pkg/claims"
	"github.com/propshare-labs/distributor/pkg/distribution"
	"github.com/propshare-labs/distributor/pkg/eventBus"
	"github.com/propshare-labs/distributor/pkg/fees"
	"github.com/propshare-labs/distributor/pkg/merkle"
	"github.com/propshare-labs/distributor/pkg/postgres"
	"github.com/propshare-labs/distributor/pkg/proofs"
	"github.com/propshare-labs/distributor/pkg/transfer"
	"github.com/propshare-labs/distributor/pkg/utils"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup() (
	string,
	*gorm.DB,
	*zap.Logger,
	*config.Config,
	error,
) {
	cfg := config.NewConfig()
	cfg.Debug = os.Getenv(config.Debug) == "true"
	cfg.DatabaseConfig = *tests.GetDbConfigFromEnv()
	cfg.FeeConfig = config.FeeConfig{
		PlatformRateBips:       250,
		MaintenanceRateBips:    100,
		PlatformFeeReceiver:    "0xcccccccccccccccccccccccccccccccccccccccc",
		MaintenanceFeeReceiver: "0xdddddddddddddddddddddddddddddddddddddddd",
	}

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	dbname, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, l)
	if err != nil {
		return dbname, nil, nil, nil, err
	}

	return dbname, grm, l, cfg, nil
}

func newTestServer(grm *gorm.DB, l *zap.Logger, cfg *config.Config) (*RpcServer, *transfer.EscrowLedger) {
	registry := distribution.NewRegistry(grm, l, cfg)
	escrowLedger := transfer.NewEscrowLedger(grm, l)
	calculator, _ := fees.NewCalculator(cfg.FeeConfig.PlatformRateBips, cfg.FeeConfig.MaintenanceRateBips)
	eb := eventBus.NewEventBus(l)
	engine := claims.NewClaimsEngine(grm, l, cfg, calculator, escrowLedger, eb, nil)
	proofStore := proofs.NewProofStore(registry, l)

	server := NewRpcServer(&RpcServerConfig{HttpPort: 0}, registry, engine, proofStore, escrowLedger, eb, nil, l)
	return server, escrowLedger
}

func postJson(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	encoded, err := json.Marshal(body)
	assert.Nil(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getJson(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func Test_RpcServer(t *testing.T) {
	dbName, grm, l, cfg, err := setup()

	if err != nil {
		t.Fatal(err)
	}

	server, escrowLedger := newTestServer(grm, l, cfg)
	handler := server.routes()

	entries := []merkle.Entry{
		{Holder: gethcommon.HexToAddress("0x1111111111111111111111111111111111111111"), Amount: big.NewInt(600)},
		{Holder: gethcommon.HexToAddress("0x2222222222222222222222222222222222222222"), Amount: big.NewInt(400)},
	}
	tree, err := merkle.NewTree(entries)
	assert.Nil(t, err)

	createBody := func(preFund bool) map[string]any {
		return map[string]any{
			"creator":          "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			"assetId":          "property-42",
			"tokenAddress":     "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			"distributionKind": "rental_income",
			"windowEnd":        time.Now().Add(time.Hour).Format(time.RFC3339),
			"totalAmount":      "1000",
			"merkleRoot":       utils.ConvertBytesToString(tree.Root()),
			"entries": []map[string]string{
				{"holder": "0x1111111111111111111111111111111111111111", "amount": "600"},
				{"holder": "0x2222222222222222222222222222222222222222", "amount": "400"},
			},
			"preFundEscrow": preFund,
		}
	}

	t.Run("Should create a distribution and fund its escrow in one call", func(t *testing.T) {
		rec := postJson(t, handler, "/v1/distributions", createBody(true))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var dist distribution.Distribution
		assert.Nil(t, json.Unmarshal(rec.Body.Bytes(), &dist))
		assert.NotEmpty(t, dist.Id)

		// the stored total reached the ledger, not a caller-recomputed value
		balance, err := escrowLedger.Balance(dist.Id)
		assert.Nil(t, err)
		assert.Equal(t, "1000", balance.String())
	})
	t.Run("Should leave the escrow empty when pre-funding is not requested", func(t *testing.T) {
		rec := postJson(t, handler, "/v1/distributions", createBody(false))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var dist distribution.Distribution
		assert.Nil(t, json.Unmarshal(rec.Body.Bytes(), &dist))

		balance, err := escrowLedger.Balance(dist.Id)
		assert.Nil(t, err)
		assert.Equal(t, "0", balance.String())
	})
	t.Run("Should serve proofs and process a claim end to end", func(t *testing.T) {
		rec := postJson(t, handler, "/v1/distributions", createBody(true))
		assert.Equal(t, http.StatusCreated, rec.Code)
		var dist distribution.Distribution
		assert.Nil(t, json.Unmarshal(rec.Body.Bytes(), &dist))

		rec = postJson(t, handler, fmt.Sprintf("/v1/distributions/%s/activate", dist.Id), nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = getJson(handler, fmt.Sprintf("/v1/distributions/%s/proofs/%s", dist.Id, "0x1111111111111111111111111111111111111111"))
		assert.Equal(t, http.StatusOK, rec.Code)
		var proof proofs.HolderProof
		assert.Nil(t, json.Unmarshal(rec.Body.Bytes(), &proof))
		assert.Equal(t, "600", proof.EligibleAmount)

		rec = postJson(t, handler, fmt.Sprintf("/v1/distributions/%s/claims", dist.Id), map[string]any{
			"claimant": "0x1111111111111111111111111111111111111111",
			"amount":   "600",
			"proof":    proof.Proof,
		})
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = getJson(handler, fmt.Sprintf("/v1/distributions/%s/claims/%s", dist.Id, "0x1111111111111111111111111111111111111111"))
		assert.Equal(t, http.StatusOK, rec.Code)
		var status claimStatusResponse
		assert.Nil(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.True(t, status.Claimed)

		// replay of the same claim maps to a conflict
		rec = postJson(t, handler, fmt.Sprintf("/v1/distributions/%s/claims", dist.Id), map[string]any{
			"claimant": "0x1111111111111111111111111111111111111111",
			"amount":   "600",
			"proof":    proof.Proof,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
	t.Run("Should map unknown distributions to 404", func(t *testing.T) {
		rec := getJson(handler, "/v1/distributions/00000000-0000-0000-0000-000000000000")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("Should map invalid creation input to 400", func(t *testing.T) {
		body := createBody(false)
		body["totalAmount"] = "-1"
		rec := postJson(t, handler, "/v1/distributions", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
