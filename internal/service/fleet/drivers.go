package fleet

import (
	"context"
	"errors"

	"campuscart/internal/domain/cart"
	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
	"campuscart/internal/ports"
)

// AssignCart binds a cart to a driver. A cart the driver already holds is
// released first, so reassignment is a single atomic swap.
func (service *Service) AssignCart(ctx context.Context, cartID, driverID string) error {
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		driver, err := service.users.GetByID(ctx, driverID)
		if err != nil {
			return err
		}
		if !driver.Role.IsDriver() {
			return user.ErrNotADriver
		}

		if driver.AssignedCartID != nil {
			if *driver.AssignedCartID == cartID {
				return nil // already bound to this cart
			}
			previous, err := service.carts.GetByID(ctx, *driver.AssignedCartID)
			if err != nil && !errors.Is(err, cart.ErrNotFound) {
				return err
			}
			if previous != nil {
				previous.Unbind()
				if err := service.carts.Save(ctx, previous); err != nil {
					return err
				}
			}
			driver.UnassignCart()
		}

		next, err := service.carts.GetByID(ctx, cartID)
		if err != nil {
			return err
		}
		if err := next.Bind(driverID); err != nil {
			return err
		}
		if err := driver.AssignCart(cartID); err != nil {
			return err
		}

		if err := service.carts.Save(ctx, next); err != nil {
			return err
		}
		return service.users.Save(ctx, driver)
	})
	if err != nil {
		return err
	}

	service.log.Info(ctx, "cart_assigned", "cart bound to driver", map[string]any{
		"cart_id":   cartID,
		"driver_id": driverID,
	})
	return nil
}

// UnassignCart releases the cart. Only dispatchers or the holding driver may
// do it, and not while the driver is on an active ride.
func (service *Service) UnassignCart(ctx context.Context, cartID, actorID string, role user.Role) error {
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		c, err := service.carts.GetByID(ctx, cartID)
		if err != nil {
			return err
		}
		if c.CurrentDriverID == nil {
			return nil // already free
		}
		holder := *c.CurrentDriverID

		if !role.IsDispatcher() && actorID != holder {
			return ports.ErrForbidden
		}
		if _, err := service.rides.ActiveForDriver(ctx, holder); err == nil {
			return user.ErrActiveRide
		} else if !errors.Is(err, ride.ErrNotFound) {
			return err
		}

		c.Unbind()
		if err := service.carts.Save(ctx, c); err != nil {
			return err
		}
		return service.releaseDriver(ctx, holder)
	})
	if err != nil {
		return err
	}

	service.log.Info(ctx, "cart_unassigned", "cart released", map[string]any{
		"cart_id": cartID,
	})
	return nil
}

// SetDuty flips a driver's duty flag. Going off duty is refused while the
// driver carries an accepted or in-progress ride.
func (service *Service) SetDuty(ctx context.Context, driverID string, onDuty bool) (*user.User, error) {
	var updated *user.User
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		driver, err := service.users.GetByID(ctx, driverID)
		if err != nil {
			return err
		}
		if !onDuty {
			if _, err := service.rides.ActiveForDriver(ctx, driverID); err == nil {
				return user.ErrActiveRide
			} else if !errors.Is(err, ride.ErrNotFound) {
				return err
			}
		}
		if err := driver.SetDuty(onDuty); err != nil {
			return err
		}
		if err := service.users.Save(ctx, driver); err != nil {
			return err
		}
		updated = driver
		return nil
	})
	if err != nil {
		return nil, err
	}

	service.log.Info(ctx, "duty_changed", "driver duty updated", map[string]any{
		"driver_id": driverID,
		"on_duty":   onDuty,
	})
	return updated, nil
}

func (service *Service) ListDrivers(ctx context.Context, onDutyOnly bool) ([]*user.User, error) {
	return service.users.ListDrivers(ctx, onDutyOnly)
}
