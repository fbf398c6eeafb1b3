package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"faucetScope/internal/faucet"
	"faucetScope/internal/model"
	"faucetScope/internal/reconcile"
	"faucetScope/internal/storage"
)

const (
	codeNotEligible      = "NOT_ELIGIBLE"
	codeStoreUnavailable = "STORE_UNAVAILABLE"
	codeInvalidAddress   = "INVALID_ADDRESS"

	// Interactive paths use short timeouts; users watch these requests.
	requestTimeout   = 5 * time.Second
	reconcileTimeout = 60 * time.Second
)

func (s *Server) handleEligibility(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := s.oracle.Check(ctx, c.Param("wallet"))
	if err != nil {
		if errors.Is(err, faucet.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": codeInvalidAddress})
			return
		}
		// Fail closed: an unreachable store reports not-eligible.
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"eligible": false,
			"error":    codeStoreUnavailable,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"eligible":           result.Eligible,
		"cooldown_remaining": result.CooldownRemaining.String(),
		"wait":               faucet.FormatWait(result.CooldownRemaining),
	})
}

func (s *Server) handleClaim(c *gin.Context) {
	var req struct {
		Wallet string `json:"wallet"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	record, err := s.recorder.RecordClaim(ctx, req.Wallet)
	if err != nil {
		switch {
		case errors.Is(err, faucet.ErrInvalidAddress):
			c.JSON(http.StatusBadRequest, gin.H{"error": codeInvalidAddress})
		case errors.Is(err, faucet.ErrNotEligible):
			remaining, checkErr := s.oracle.TimeUntilNextClaim(ctx, req.Wallet)
			response := gin.H{"success": false, "error": codeNotEligible}
			if checkErr == nil {
				response["cooldown_remaining"] = remaining.String()
				response["wait"] = faucet.FormatWait(remaining)
			}
			c.JSON(http.StatusConflict, response)
		case errors.Is(err, storage.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": codeStoreUnavailable})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		}
		return
	}

	response := gin.H{
		"success": true,
		"amount":  record.AmountClaimed,
	}
	if record.TxHash != "" {
		response["transaction_reference"] = record.TxHash
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleReconcile(c *gin.Context) {
	var req struct {
		Wallet  string `json:"wallet"`
		Network string `json:"network"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// Transfer rows store lowercased addresses, so the filter has to be
	// lowercased too or a checksum-cased wallet matches nothing.
	wallet := ""
	if req.Wallet != "" {
		normalized, ok := model.NormalizeAddress(req.Wallet)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": codeInvalidAddress})
			return
		}
		wallet = normalized
	}

	networks := s.networks
	if req.Network != "" {
		networks = nil
		for _, network := range s.networks {
			if network.Name == req.Network {
				networks = []reconcile.Network{network}
				break
			}
		}
		if networks == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown network"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), reconcileTimeout)
	defer cancel()

	result := s.reconciler.ReconcileAll(ctx, networks, wallet)
	for _, failed := range result.Failed() {
		if err := s.annotator.ReportFailure(ctx, failed.ChainID, "reconciliation failed", errors.New(failed.Error)); err != nil {
			s.logger.Warn("report reconcile failure", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"transfers_merged": result.TransfersMerged(),
		"scopes":           result.Scopes,
	})
}

func (s *Server) handleAlerts(c *gin.Context) {
	chainID := uint64(0)
	if raw := c.Query("chain_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chain_id"})
			return
		}
		chainID = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	alerts, err := s.annotator.Active(ctx, chainID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": codeStoreUnavailable})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (s *Server) handleResolveAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.annotator.Resolve(ctx, id); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": codeStoreUnavailable})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": true})
}
