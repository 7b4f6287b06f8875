package rpcServer

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/propshare-labs/distributor/internal/metrics/metricsTypes"
	"github.com/propshare-labs/distributor/pkg/claims"
	"github.com/propshare-labs/distributor/pkg/distribution"
	"github.com/propshare-labs/distributor/pkg/eventBus/eventBusTypes"
	"github.com/propshare-labs/distributor/pkg/merkle"
	"github.com/propshare-labs/distributor/pkg/numbers"
	"github.com/propshare-labs/distributor/pkg/proofs"
	"github.com/propshare-labs/distributor/pkg/utils"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *RpcServer) writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Sugar().Errorw("Failed to encode response", zap.Error(err))
	}
}

func (s *RpcServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJson(w, status, &errorResponse{Error: err.Error()})
}

func (s *RpcServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

type eligibilityEntryPayload struct {
	Holder string `json:"holder"`
	Amount string `json:"amount"`
}

type createDistributionRequest struct {
	Creator          string                    `json:"creator"`
	AssetId          string                    `json:"assetId"`
	TokenAddress     string                    `json:"tokenAddress"`
	DistributionKind string                    `json:"distributionKind"`
	WindowEnd        time.Time                 `json:"windowEnd"`
	Description      string                    `json:"description"`
	TotalAmount      string                    `json:"totalAmount"`
	MerkleRoot       string                    `json:"merkleRoot"`
	Entries          []eligibilityEntryPayload `json:"entries,omitempty"`

	// Pre-fund the escrow with totalAmount from the creator in the same
	// call.
	PreFundEscrow bool `json:"preFundEscrow"`
}

func (s *RpcServer) handleCreateDistribution(w http.ResponseWriter, r *http.Request) {
	var req createDistributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	entries := make([]merkle.Entry, 0, len(req.Entries))
	for _, e := range req.Entries {
		amount, err := numbers.NumericStringToBig(e.Amount)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		entries = append(entries, merkle.Entry{
			Holder: gethcommon.HexToAddress(e.Holder),
			Amount: amount,
		})
	}

	dist, err := s.registry.CreateDistribution(&distribution.CreateDistributionParams{
		Creator:          req.Creator,
		AssetId:          req.AssetId,
		TokenAddress:     req.TokenAddress,
		DistributionKind: req.DistributionKind,
		WindowEnd:        req.WindowEnd,
		Description:      req.Description,
		TotalAmount:      req.TotalAmount,
		MerkleRoot:       req.MerkleRoot,
		Entries:          entries,
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.PreFundEscrow {
		total, err := numbers.NumericStringToBig(dist.TotalAmount)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if err := s.escrowLedger.Fund(dist.Id, dist.Creator, total); err != nil {
			s.Logger.Sugar().Errorw("Failed to pre-fund escrow",
				zap.String("distributionId", dist.Id),
				zap.Error(err),
			)
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	if s.eventBus != nil {
		s.eventBus.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_DistributionCreated,
			Data: dist,
		})
	}
	if s.metricsSink != nil {
		_ = s.metricsSink.Incr(metricsTypes.Metric_Incr_DistributionCreated, nil, 1)
	}

	s.writeJson(w, http.StatusCreated, dist)
}

func (s *RpcServer) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	dist, err := s.registry.GetDistribution(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, distribution.ErrDistributionNotFound) {
			s.writeError(w, http.StatusNotFound, err)
		} else {
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	s.writeJson(w, http.StatusOK, dist)
}

func (s *RpcServer) handleTransition(
	w http.ResponseWriter,
	distributionId string,
	transition func(string) (*distribution.Distribution, error),
) {
	dist, err := transition(distributionId)
	if err != nil {
		switch {
		case errors.Is(err, distribution.ErrDistributionNotFound):
			s.writeError(w, http.StatusNotFound, err)
		case errors.Is(err, distribution.ErrInvalidTransition):
			s.writeError(w, http.StatusConflict, err)
		default:
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	if s.metricsSink != nil {
		if active, err := s.registry.CountDistributionsByStatus(distribution.DistributionStatus_Active); err == nil {
			_ = s.metricsSink.Gauge(metricsTypes.Metric_Gauge_ActiveDistributions, float64(active), nil)
		}
	}
	s.writeJson(w, http.StatusOK, dist)
}

func (s *RpcServer) handleActivateDistribution(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r.PathValue("id"), s.registry.ActivateDistribution)
}

func (s *RpcServer) handleCloseDistribution(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r.PathValue("id"), s.registry.CloseDistribution)
}

func (s *RpcServer) handleCancelDistribution(w http.ResponseWriter, r *http.Request) {
	s.proofStore.Invalidate(r.PathValue("id"))
	s.handleTransition(w, r.PathValue("id"), s.registry.CancelDistribution)
}

type processClaimRequest struct {
	Claimant    string   `json:"claimant"`
	Amount      string   `json:"amount"`
	TotalAmount string   `json:"totalAmount,omitempty"`
	Proof       []string `json:"proof"`
}

func (s *RpcServer) handleProcessClaim(w http.ResponseWriter, r *http.Request) {
	var req processClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	amount, err := numbers.NumericStringToBig(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	params := &claims.ClaimParams{
		DistributionId: r.PathValue("id"),
		Claimant:       req.Claimant,
		Amount:         amount,
	}
	if req.TotalAmount != "" {
		if total, err := numbers.NumericStringToBig(req.TotalAmount); err == nil {
			params.TotalAmount = total
		}
	}
	for _, sibling := range req.Proof {
		decoded, err := utils.ConvertStringToBytes(sibling)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		params.Proof = append(params.Proof, decoded)
	}

	receipt, err := s.claimsEngine.ProcessClaim(params)
	if err != nil {
		switch {
		case errors.Is(err, claims.ErrDistributionNotFound):
			s.writeError(w, http.StatusNotFound, err)
		case errors.Is(err, claims.ErrAlreadyClaimed):
			s.writeError(w, http.StatusConflict, err)
		case errors.Is(err, claims.ErrDistributionNotActive),
			errors.Is(err, claims.ErrClaimWindowClosed),
			errors.Is(err, claims.ErrInvalidAmount),
			errors.Is(err, claims.ErrInvalidProof):
			s.writeError(w, http.StatusUnprocessableEntity, err)
		default:
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	s.writeJson(w, http.StatusOK, receipt)
}

type claimStatusResponse struct {
	DistributionId string                    `json:"distributionId"`
	Holder         string                    `json:"holder"`
	Claimed        bool                      `json:"claimed"`
	Record         *distribution.ClaimRecord `json:"record,omitempty"`
}

func (s *RpcServer) handleGetClaimStatus(w http.ResponseWriter, r *http.Request) {
	distributionId := r.PathValue("id")
	holder := r.PathValue("holder")

	record, err := s.registry.GetClaimRecord(distributionId, holder)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJson(w, http.StatusOK, &claimStatusResponse{
		DistributionId: distributionId,
		Holder:         holder,
		Claimed:        record != nil,
		Record:         record,
	})
}

func (s *RpcServer) handleGetProof(w http.ResponseWriter, r *http.Request) {
	proof, err := s.proofStore.GetProof(r.PathValue("id"), r.PathValue("holder"))
	if err != nil {
		switch {
		case errors.Is(err, proofs.ErrNotEligible):
			s.writeError(w, http.StatusNotFound, err)
		case errors.Is(err, distribution.ErrDistributionNotFound):
			s.writeError(w, http.StatusNotFound, err)
		default:
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	s.writeJson(w, http.StatusOK, proof)
}
