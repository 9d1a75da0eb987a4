package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	cartdomain "github.com/commercekit/fulfillment/internal/cart/domain"
	catalogdomain "github.com/commercekit/fulfillment/internal/catalog/domain"
	orderdomain "github.com/commercekit/fulfillment/internal/order/domain"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// WriteError maps the domain error taxonomy onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body.
func WriteError(w http.ResponseWriter, err error) {
	var (
		validation   *orderdomain.ValidationError
		invalidLine  *orderdomain.InvalidLineError
		insufficient *catalogdomain.InsufficientStockError
	)
	switch {
	case errors.As(err, &validation),
		errors.As(err, &invalidLine),
		errors.Is(err, orderdomain.ErrEmptyCart),
		errors.Is(err, cartdomain.ErrBadQuantity):
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.As(err, &insufficient):
		WriteJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, catalogdomain.ErrProductNotFound),
		errors.Is(err, cartdomain.ErrLineNotFound):
		WriteJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, orderdomain.ErrForbidden):
		WriteJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, orderdomain.ErrAlreadyCancelled):
		WriteJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
