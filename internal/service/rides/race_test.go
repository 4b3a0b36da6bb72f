package rides

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"campuscart/internal/domain/ride"
)

// TestConcurrentAcceptExactlyOneWinner hammers a single requested ride with
// many drivers at once. Exactly one accept may succeed; every loser gets
// ErrNoLongerAvailable and leaves no trace on the ride.
func TestConcurrentAcceptExactlyOneWinner(t *testing.T) {
	const drivers = 32

	svc, store, _ := newTestService(t)
	seedRider(t, store, "rider-1")
	for i := 0; i < drivers; i++ {
		seedDriver(t, store, fmt.Sprintf("driver-%d", i), true, fmt.Sprintf("cart-%d", i))
	}
	r := createRide(t, svc, "rider-1")

	var (
		start   = make(chan struct{})
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losses  int
	)
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(driverID string) {
			defer wg.Done()
			<-start

			accepted, err := svc.Accept(context.Background(), r.ID, driverID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, *accepted.DriverID)
			case errors.Is(err, ride.ErrNoLongerAvailable):
				losses++
			default:
				t.Errorf("driver %s: unexpected error %v", driverID, err)
			}
		}(fmt.Sprintf("driver-%d", i))
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("winners = %v, want exactly one", winners)
	}
	if losses != drivers-1 {
		t.Fatalf("losses = %d, want %d", losses, drivers-1)
	}

	final, err := store.Rides().GetByID(context.Background(), r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != ride.StatusAccepted {
		t.Errorf("final status = %s, want accepted", final.Status)
	}
	if final.DriverID == nil || *final.DriverID != winners[0] {
		t.Errorf("bound driver = %v, want winner %s", final.DriverID, winners[0])
	}

	// the thread admitted only the winner
	thread, err := store.Threads().GetByRide(context.Background(), r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(thread.Participants) != 2 {
		t.Errorf("thread participants = %v, want rider and winner only", thread.Participants)
	}

	// exactly one accepted audit event
	trail, err := store.RideEvents().ListForRide(context.Background(), r.ID)
	if err != nil {
		t.Fatal(err)
	}
	acceptedEvents := 0
	for _, e := range trail {
		if e.ToStatus == ride.StatusAccepted {
			acceptedEvents++
		}
	}
	if acceptedEvents != 1 {
		t.Errorf("accepted audit events = %d, want 1", acceptedEvents)
	}
}

// TestConcurrentAcceptAcrossManyRides runs several races at once and checks
// winners never collide across rides: a driver who won one ride is rejected
// from the next because they already carry an active ride.
func TestConcurrentAcceptAcrossManyRides(t *testing.T) {
	const (
		rideCount   = 8
		driverCount = 8
	)

	svc, store, _ := newTestService(t)
	for i := 0; i < rideCount; i++ {
		seedRider(t, store, fmt.Sprintf("rider-%d", i))
	}
	for i := 0; i < driverCount; i++ {
		seedDriver(t, store, fmt.Sprintf("driver-%d", i), true, fmt.Sprintf("cart-%d", i))
	}

	rideIDs := make([]string, rideCount)
	for i := 0; i < rideCount; i++ {
		rideIDs[i] = createRide(t, svc, fmt.Sprintf("rider-%d", i)).ID
	}

	// each driver walks the pool in order; drivers race each other
	var wg sync.WaitGroup
	start := make(chan struct{})
	for d := 0; d < driverCount; d++ {
		wg.Add(1)
		go func(driverID string) {
			defer wg.Done()
			<-start
			for _, rideID := range rideIDs {
				_, _ = svc.Accept(context.Background(), rideID, driverID)
			}
		}(fmt.Sprintf("driver-%d", d))
	}
	close(start)
	wg.Wait()

	seen := make(map[string]string) // driver -> ride they won
	for _, rideID := range rideIDs {
		r, err := store.Rides().GetByID(context.Background(), rideID)
		if err != nil {
			t.Fatal(err)
		}
		if r.Status != ride.StatusAccepted {
			continue // a ride may stay requested if every driver was busy by then
		}
		if r.DriverID == nil {
			t.Fatalf("accepted ride %s has no driver", rideID)
		}
		if prev, ok := seen[*r.DriverID]; ok {
			t.Errorf("driver %s won rides %s and %s", *r.DriverID, prev, rideID)
		}
		seen[*r.DriverID] = rideID
	}
}
