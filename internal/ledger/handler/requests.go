package handler

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"paylog/internal/ledger"
	"paylog/pkg/domain"
	dErrors "paylog/pkg/domain-errors"
)

type createRegistryRequest struct {
	ProjectID       string   `json:"project_id"`
	Client          string   `json:"client"`
	Freelancer      string   `json:"freelancer"`
	Oracle          string   `json:"oracle"`
	Amounts         []string `json:"amounts"`
	DisplayDecimals uint8    `json:"display_decimals"`
}

// ToParams converts the wire request into init parameters. Amounts arrive as
// decimal strings so arbitrary-precision values survive JSON.
func (r createRegistryRequest) ToParams() (ledger.InitParams, error) {
	amounts := make([]*big.Int, 0, len(r.Amounts))
	for i, raw := range r.Amounts {
		amt, err := parseAmount(raw)
		if err != nil {
			return ledger.InitParams{}, dErrors.New(dErrors.CodeBadRequest,
				"amounts["+strconv.Itoa(i)+"] must be a non-negative decimal integer")
		}
		amounts = append(amounts, amt)
	}
	return ledger.InitParams{
		ProjectID:       r.ProjectID,
		Client:          domain.Address(r.Client),
		Freelancer:      domain.Address(r.Freelancer),
		Oracle:          domain.Address(r.Oracle),
		Amounts:         amounts,
		DisplayDecimals: r.DisplayDecimals,
	}, nil
}

type requestReleaseRequest struct {
	WorkHash string `json:"work_hash"`
}

type confirmPaymentRequest struct {
	PaidAmount       string `json:"paid_amount"`
	PaymentReference string `json:"payment_reference"`
}

func (r confirmPaymentRequest) ParsedAmount() (*big.Int, error) {
	amt, err := parseAmount(r.PaidAmount)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "paid_amount must be a non-negative decimal integer")
	}
	return amt, nil
}

func parseAmount(raw string) (*big.Int, error) {
	amt, ok := new(big.Int).SetString(raw, 10)
	if !ok || amt.Sign() < 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid amount")
	}
	return amt, nil
}

func pathRegistryID(r *http.Request) (domain.RegistryID, error) {
	id, err := domain.ParseRegistryID(chi.URLParam(r, "registryID"))
	if err != nil {
		return domain.RegistryID{}, dErrors.New(dErrors.CodeBadRequest, "registry id must be a UUID")
	}
	return id, nil
}

func pathIDs(r *http.Request) (domain.RegistryID, int, error) {
	registryID, err := pathRegistryID(r)
	if err != nil {
		return domain.RegistryID{}, 0, err
	}
	milestoneID, err := strconv.Atoi(chi.URLParam(r, "milestoneID"))
	if err != nil {
		return domain.RegistryID{}, 0, dErrors.New(dErrors.CodeBadRequest, "milestone id must be an integer")
	}
	return registryID, milestoneID, nil
}
