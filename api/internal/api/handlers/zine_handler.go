package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/zinevault/zinevault/api/internal/core/domain"
)

// ==============================================================================
// 1. Request & Response Payloads
// ==============================================================================

type GenerateZineRequest struct {
	ZineContent domain.ZineContent `json:"zine_content" validate:"required,min=1,dive"`
	Password    string             `json:"password" validate:"required,max=4096"`
}

type GenerateZineResponse struct {
	EncryptedZine string `json:"encryptedZine"`
	TOTPSecret    string `json:"totpSecret"`
	Nonce         string `json:"nonce"`
	Salt          string `json:"salt"`
}

type RecoverSecretRequest struct {
	Password string `json:"password" validate:"required,max=4096"`
}

type RecoverSecretResponse struct {
	TOTPSecret string `json:"totpSecret"`
}

type OpenZineRequest struct {
	EncryptedZine string `json:"encryptedZine" validate:"required,base64"`
	Nonce         string `json:"nonce" validate:"required,base64"`
	Salt          string `json:"salt" validate:"required,base64"`
	Password      string `json:"password" validate:"required,max=4096"`
}

type OpenZineResponse struct {
	ZineContent domain.ZineContent `json:"zine_content"`
}

// ==============================================================================
// 2. The Handler Struct
// ==============================================================================

type ZineHandler struct {
	Service domain.ZineService
	Logger  *slog.Logger
	ErrorResponder
}

func NewZineHandler(service domain.ZineService, logger *slog.Logger, exposeInternal bool) *ZineHandler {
	return &ZineHandler{
		Service:        service,
		Logger:         logger,
		ErrorResponder: ErrorResponder{Logger: logger, ExposeInternal: exposeInternal},
	}
}

// ==============================================================================
// 3. HTTP Methods
// ==============================================================================

// GenerateZine handles POST /generate_zine
func (h *ZineHandler) GenerateZine(w http.ResponseWriter, r *http.Request) {
	var req GenerateZineRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleError(w, r, err)
		return
	}

	res, err := h.Service.Issue(r.Context(), req.ZineContent, req.Password)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, GenerateZineResponse{
		EncryptedZine: base64.StdEncoding.EncodeToString(res.Ciphertext),
		TOTPSecret:    base64.StdEncoding.EncodeToString(res.RecoverySecret),
		Nonce:         base64.StdEncoding.EncodeToString(res.Nonce),
		Salt:          base64.StdEncoding.EncodeToString(res.Salt),
	})
}

// RecoverSecret handles POST /recover_secret
func (h *ZineHandler) RecoverSecret(w http.ResponseWriter, r *http.Request) {
	var req RecoverSecretRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleError(w, r, err)
		return
	}

	secret, err := h.Service.Recover(r.Context(), req.Password)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, RecoverSecretResponse{
		TOTPSecret: base64.StdEncoding.EncodeToString(secret),
	})
}

// RecoverSecretQRCode handles POST /recover_secret/qrcode
func (h *ZineHandler) RecoverSecretQRCode(w http.ResponseWriter, r *http.Request) {
	var req RecoverSecretRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleError(w, r, err)
		return
	}

	png, err := h.Service.RecoverQRCode(r.Context(), req.Password)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// OpenZine handles POST /open_zine
func (h *ZineHandler) OpenZine(w http.ResponseWriter, r *http.Request) {
	var req OpenZineRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleError(w, r, err)
		return
	}

	// validate has already checked these are well-formed base64.
	ciphertext, _ := base64.StdEncoding.DecodeString(req.EncryptedZine)
	nonce, _ := base64.StdEncoding.DecodeString(req.Nonce)
	salt, _ := base64.StdEncoding.DecodeString(req.Salt)

	content, err := h.Service.Open(r.Context(), domain.SealedZine{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Salt:       salt,
	}, req.Password)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, OpenZineResponse{ZineContent: content})
}
