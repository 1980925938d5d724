package handlers

import (
	"math/big"
	"net/http"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	log "github.com/sirupsen/logrus"
)

type errorBody struct {
	Message string `json:"message"`
}

// Envelope is the shape of every relay response.
type Envelope struct {
	Code  int        `json:"code"`
	Data  any        `json:"data"`
	Error *errorBody `json:"error,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Data: data})
}

// fail writes the typed error carried by err. Client side errors keep a 200
// status, relay and chain failures are reported as 500.
func fail(c *gin.Context, err error) {
	e := domain.AsError(err)
	status := http.StatusOK
	switch e.Kind {
	case domain.KindChain, domain.KindChainReverted, domain.KindInternal:
		status = http.StatusInternalServerError
		// nolint:all
		c.Error(err)
		log.WithError(err).Warnf("%s %s failed", c.Request.Method, c.FullPath())
	default:
		log.WithError(err).Debugf("%s %s rejected", c.Request.Method, c.FullPath())
	}

	message := e.Message
	if e.Kind == domain.KindValidation {
		message = e.Error()
	}
	c.JSON(status, Envelope{Code: e.Code, Error: &errorBody{Message: message}})
}

// bindJSON keeps the body around so that the access key middleware can read
// it as well.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindBodyWith(req, binding.JSON); err != nil {
		fail(c, domain.ErrValidation.Wrap(err))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		fail(c, domain.ErrValidation.Wrap(err))
		return false
	}
	return true
}

// Inputs reaching the parsers below already passed the binding validators.

func parseAmount(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

func parseSignature(s string) []byte {
	return hexutil.MustDecode(s)
}

func parseHashes(list []string) []common.Hash {
	hashes := make([]common.Hash, 0, len(list))
	for _, h := range list {
		hashes = append(hashes, common.HexToHash(h))
	}
	return hashes
}

func hashHex(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return h.Hex()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
