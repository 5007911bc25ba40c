// Package pncp reads published procurements from the consultation API of the
// Portal Nacional de Contratações Públicas.
package pncp

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://pncp.gov.br/api/consulta"
	portalURL = "https://pncp.gov.br/app/editais"
	userAgent = "licita-radar (+https://github.com/spigell/licita-radar)"
	// Max value for tamanhoPagina accepted by the API.
	perPage = 50
	// defaultMaxPages bounds a single modality query.
	defaultMaxPages = 20
)

type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	PortalURL  string
	// MaxPages caps the pages fetched per modality. 0 uses the default.
	MaxPages int
	// MaxRetries is the number of retries on 429 and 5xx answers.
	MaxRetries int
	// RetryDelay is multiplied by the attempt number between retries.
	RetryDelay time.Duration
}

func New(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		APIURL:    apiURL,
		PortalURL: portalURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:     logger,
		UserAgent:  userAgent,
		MaxRetries: 2,
		RetryDelay: 2 * time.Second,
	}
}
