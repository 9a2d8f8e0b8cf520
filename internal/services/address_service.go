package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cafe-delivery/storefront/internal/domain"
)

var errAddressAPIRequired = errors.New("address service: api client is required")

var (
	// ErrAddressInvalidInput indicates the address failed validation.
	ErrAddressInvalidInput = errors.New("address service: invalid input")
	// ErrAddressNotFound indicates the address does not exist.
	ErrAddressNotFound = errors.New("address service: not found")
	// ErrAddressUnavailable indicates the address book could not be reached.
	ErrAddressUnavailable = errors.New("address service: unavailable")
)

var addressErrorKinds = apiErrorKinds{
	invalid:     ErrAddressInvalidInput,
	notFound:    ErrAddressNotFound,
	unavailable: ErrAddressUnavailable,
}

var (
	latitudeBound  = decimal.NewFromInt(90)
	longitudeBound = decimal.NewFromInt(180)
)

// AddressServiceDeps wires the address book.
type AddressServiceDeps struct {
	API    addressAPI
	Logger func(context.Context, string, map[string]any)
}

type addressService struct {
	api    addressAPI
	logger func(context.Context, string, map[string]any)
}

var _ AddressService = (*addressService)(nil)

// NewAddressService constructs the address book service.
func NewAddressService(deps AddressServiceDeps) (AddressService, error) {
	if deps.API == nil {
		return nil, errAddressAPIRequired
	}
	return &addressService{api: deps.API, logger: loggerOrNoop(deps.Logger)}, nil
}

func (s *addressService) List(ctx context.Context) ([]Address, error) {
	addresses, err := s.api.ListAddresses(ctx)
	if err != nil {
		return nil, translateAPIError(err, addressErrorKinds)
	}
	return addresses, nil
}

func (s *addressService) Default(ctx context.Context) (Address, error) {
	address, err := s.api.DefaultAddress(ctx)
	if err != nil {
		return Address{}, translateAPIError(err, addressErrorKinds)
	}
	return address, nil
}

func (s *addressService) Create(ctx context.Context, address Address) (Address, error) {
	address, err := normaliseAddress(address)
	if err != nil {
		return Address{}, err
	}
	created, err := s.api.CreateAddress(ctx, address)
	if err != nil {
		return Address{}, translateAPIError(err, addressErrorKinds)
	}
	s.logger(ctx, "addresses.created", map[string]any{"addressId": created.ID.String()})
	return created, nil
}

func (s *addressService) Update(ctx context.Context, id domain.ID, address Address) (Address, error) {
	if id.IsZero() {
		return Address{}, ErrAddressInvalidInput
	}
	address, err := normaliseAddress(address)
	if err != nil {
		return Address{}, err
	}
	address.ID = id
	updated, err := s.api.UpdateAddress(ctx, id, address)
	if err != nil {
		return Address{}, translateAPIError(err, addressErrorKinds)
	}
	return updated, nil
}

func (s *addressService) Delete(ctx context.Context, id domain.ID) error {
	if id.IsZero() {
		return ErrAddressInvalidInput
	}
	return translateAPIError(s.api.DeleteAddress(ctx, id), addressErrorKinds)
}

func (s *addressService) SetDefault(ctx context.Context, id domain.ID) error {
	if id.IsZero() {
		return ErrAddressInvalidInput
	}
	return translateAPIError(s.api.SetDefaultAddress(ctx, id), addressErrorKinds)
}

func normaliseAddress(address Address) (Address, error) {
	address.Label = strings.TrimSpace(address.Label)
	address.FullAddress = strings.TrimSpace(address.FullAddress)
	verr := newValidationError(ErrAddressInvalidInput)
	if address.FullAddress == "" {
		verr.add("full_address", msgAddressRequired)
	}
	if address.Latitude.Valid && address.Latitude.Decimal.Abs().GreaterThan(latitudeBound) {
		verr.add("latitude", msgLatitudeRange)
	}
	if address.Longitude.Valid && address.Longitude.Decimal.Abs().GreaterThan(longitudeBound) {
		verr.add("longitude", msgLongitudeRange)
	}
	return address, verr.orNil()
}
