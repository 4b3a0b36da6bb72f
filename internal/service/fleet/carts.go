package fleet

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"campuscart/internal/domain/cart"
	"campuscart/internal/ports"
)

// RegisterCart adds a cart to the registry in the available state.
func (service *Service) RegisterCart(ctx context.Context, in ports.RegisterCartInput) (*cart.Cart, error) {
	newCart, err := cart.NewCart(uuid.NewString(), in.Number, in.Description)
	if err != nil {
		return nil, err
	}
	if err := service.carts.Create(ctx, newCart); err != nil {
		return nil, err
	}
	service.log.Info(ctx, "cart_registered", "cart added to the fleet", map[string]any{
		"cart_id": newCart.ID,
		"number":  newCart.Number,
	})
	return newCart, nil
}

// UpdateCart changes number and/or description. Empty fields are left alone.
func (service *Service) UpdateCart(ctx context.Context, cartID string, in ports.RegisterCartInput) (*cart.Cart, error) {
	var updated *cart.Cart
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		c, err := service.carts.GetByID(ctx, cartID)
		if err != nil {
			return err
		}
		if number := strings.TrimSpace(in.Number); number != "" {
			c.Number = number
		}
		if description := strings.TrimSpace(in.Description); description != "" {
			c.Description = description
		}
		if err := service.carts.Save(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetCartStatus moves a cart between available and maintenance. in_use is
// never set directly; it is owned by AssignCart. Entering maintenance (or
// forcing available) releases any bound driver in the same transaction.
func (service *Service) SetCartStatus(ctx context.Context, cartID string, status cart.Status) (*cart.Cart, error) {
	if status == cart.StatusInUse {
		return nil, cart.ErrInvalidStatus
	}

	var updated *cart.Cart
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		c, err := service.carts.GetByID(ctx, cartID)
		if err != nil {
			return err
		}

		switch status {
		case cart.StatusMaintenance:
			if detached := c.EnterMaintenance(); detached != nil {
				if err := service.releaseDriver(ctx, *detached); err != nil {
					return err
				}
			}
		case cart.StatusAvailable:
			if c.Status == cart.StatusMaintenance {
				if err := c.LeaveMaintenance(); err != nil {
					return err
				}
			} else if c.Status == cart.StatusInUse {
				holder := c.CurrentDriverID
				c.Unbind()
				if holder != nil {
					if err := service.releaseDriver(ctx, *holder); err != nil {
						return err
					}
				}
			}
		}

		if err := service.carts.Save(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	service.log.Info(ctx, "cart_status_changed", "cart status updated", map[string]any{
		"cart_id": cartID,
		"status":  status.String(),
	})
	return updated, nil
}

func (service *Service) GetCart(ctx context.Context, cartID string) (*cart.Cart, error) {
	return service.carts.GetByID(ctx, cartID)
}

func (service *Service) ListCarts(ctx context.Context, status *cart.Status) ([]*cart.Cart, error) {
	return service.carts.List(ctx, status)
}

// releaseDriver clears a driver's cart back-reference.
func (service *Service) releaseDriver(ctx context.Context, driverID string) error {
	driver, err := service.users.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	driver.UnassignCart()
	return service.users.Save(ctx, driver)
}
