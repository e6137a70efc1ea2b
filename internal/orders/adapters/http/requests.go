package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/JulesNsenda/chakucart/internal/orders/app/commands"
	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/payments/split"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// decodeJSONBody decodes and validates dest. Every failure wraps domain.ErrValidation.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dest any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("%w: invalid JSON payload: %v", domain.ErrValidation, err)
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	msgs := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		msgs = append(msgs, fieldErr.Namespace()[strings.Index(fieldErr.Namespace(), ".")+1:]+" "+validationMessage(fieldErr))
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	}
	return "is invalid"
}

type cartItemRequest struct {
	ProductRef string          `json:"productRef" validate:"required"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int64           `json:"quantity" validate:"gt=0"`
}

func toCart(items []cartItemRequest) []commands.CartItem {
	cart := make([]commands.CartItem, 0, len(items))
	for _, item := range items {
		cart = append(cart, commands.CartItem{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}
	return cart
}

type initializeAuthorizationRequest struct {
	Email  string           `json:"email" validate:"required,email"`
	Amount *decimal.Decimal `json:"amount"`
}

func (req initializeAuthorizationRequest) command() commands.InitializeAuthorizationCommand {
	cmd := commands.InitializeAuthorizationCommand{Email: req.Email}
	if req.Amount != nil {
		cmd.AmountUnits = split.ToMinorUnits(*req.Amount)
	}
	return cmd
}

type initializeTransactionRequest struct {
	Email    string            `json:"email" validate:"required,email"`
	Cart     []cartItemRequest `json:"cart" validate:"required,min=1,dive"`
	Subtotal decimal.Decimal   `json:"subtotal"`
	Shipping decimal.Decimal   `json:"shipping"`
	Tax      decimal.Decimal   `json:"tax"`
}

func (req initializeTransactionRequest) command() commands.InitializePaymentCommand {
	return commands.InitializePaymentCommand{
		Email:    req.Email,
		Cart:     toCart(req.Cart),
		Subtotal: req.Subtotal,
		Shipping: req.Shipping,
		Tax:      req.Tax,
	}
}

type verifyTransactionRequest struct {
	Reference string `json:"reference" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
}

type payOnDeliveryRequest struct {
	Email             string            `json:"email" validate:"required,email"`
	Cart              []cartItemRequest `json:"cart" validate:"required,min=1,dive"`
	Shipping          decimal.Decimal   `json:"shipping"`
	Tax               decimal.Decimal   `json:"tax"`
	Total             decimal.Decimal   `json:"total"`
	AuthorizationCode string            `json:"authorizationCode"`
}

func (req payOnDeliveryRequest) command() commands.PayOnDeliveryCommand {
	return commands.PayOnDeliveryCommand{
		Email:             req.Email,
		Cart:              toCart(req.Cart),
		Shipping:          req.Shipping,
		Tax:               req.Tax,
		Total:             req.Total,
		AuthorizationCode: req.AuthorizationCode,
	}
}

type confirmDeliveryRequest struct {
	OrderID           string `json:"orderId" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	AuthorizationCode string `json:"authorizationCode"`
	Reference         string `json:"reference"`
}

type saveAuthorizationRequest struct {
	Email             string `json:"email" validate:"required,email"`
	AuthorizationCode string `json:"authorizationCode" validate:"required"`
	Last4             string `json:"last4" validate:"omitempty,len=4"`
	Brand             string `json:"brand"`
	ExpMonth          string `json:"expMonth"`
	ExpYear           string `json:"expYear"`
}

type requestRefundRequest struct {
	TransactionID string           `json:"transactionId" validate:"required"`
	Amount        *decimal.Decimal `json:"amount"`
	Reason        string           `json:"reason" validate:"required"`
}

type requestPODRefundRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Reason  string `json:"reason" validate:"required"`
}
