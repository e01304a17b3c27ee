package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/venuekit/usher/pkg/faults"
	"github.com/venuekit/usher/pkg/store"
	"github.com/venuekit/usher/pkg/types"
)

// oneShot builds the engine and takes a single probe so the commands below
// see a real network status instead of UNKNOWN.
func oneShot(ctx context.Context) (*engine, error) {
	eng, err := buildEngine()
	if err != nil {
		return nil, err
	}
	eng.monitor.ProbeNow(ctx)
	return eng, nil
}

var checkinCmd = &cobra.Command{
	Use:   "checkin <booking-id> <actual-guests>",
	Short: "Record an attendee's arrival",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bookingID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("booking-id must be an integer: %w", err)
		}
		guests, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("actual-guests must be an integer: %w", err)
		}

		ctx := cmd.Context()
		eng, err := oneShot(ctx)
		if err != nil {
			return err
		}
		defer eng.close()

		result, err := eng.service.CheckIn(ctx, bookingID, guests, time.Now())
		if err != nil {
			printFault(err)
			return err
		}

		if result.Pending {
			fmt.Println("Saved for later sync: the store is unreachable right now.")
			fmt.Printf("  Operation ID: %s\n", result.OperationID)
		} else {
			fmt.Printf("Checked in booking %d with %d guests.\n", bookingID, guests)
		}
		if result.IsDuplicateCheckIn && result.PreviousCheckIn != nil {
			fmt.Println("  Note: this booking was already checked in.")
			if result.PreviousCheckIn.ActualGuests != nil {
				fmt.Printf("  Previous guests: %d\n", *result.PreviousCheckIn.ActualGuests)
			}
			if result.PreviousCheckIn.AttendedAt != nil {
				fmt.Printf("  Previous time:   %s\n", result.PreviousCheckIn.AttendedAt.Format(time.RFC3339))
			}
		}
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <code>",
	Short: "Resolve a booking by its exact code (QR-scan path)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, err := oneShot(ctx)
		if err != nil {
			return err
		}
		defer eng.close()

		booking, err := eng.service.Resolve(ctx, args[0])
		if err != nil {
			printFault(err)
			return err
		}
		printBooking(booking)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <code-prefix>",
	Short: "Search bookings by partial code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := cmd.Context()
		eng, err := oneShot(ctx)
		if err != nil {
			return err
		}
		defer eng.close()

		bookings, err := eng.service.Search(ctx, args[0], limit)
		if err != nil {
			printFault(err)
			return err
		}
		if len(bookings) == 0 {
			fmt.Println("No bookings match.")
			return nil
		}
		for i := range bookings {
			printBooking(&bookings[i])
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued check-ins now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, err := oneShot(ctx)
		if err != nil {
			return err
		}
		defer eng.close()

		stats := eng.syncer.TriggerSync(ctx)
		printStats(stats)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show network state and sync statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, err := oneShot(ctx)
		if err != nil {
			return err
		}
		defer eng.close()

		state := eng.monitor.Status()
		fmt.Printf("Network:  %s (quality: %s", state.Status, state.Quality)
		if state.Latency > 0 {
			fmt.Printf(", latency: %s", state.Latency.Round(time.Millisecond))
		}
		fmt.Println(")")
		printStats(eng.syncer.Stats())
		return nil
	},
}

var bookingCmd = &cobra.Command{
	Use:   "booking",
	Short: "Manage bookings on the record store",
}

var bookingCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a booking (for demos and testing)",
	RunE: func(cmd *cobra.Command, args []string) error {
		code, _ := cmd.Flags().GetString("code")
		name, _ := cmd.Flags().GetString("name")
		guests, _ := cmd.Flags().GetInt("expected-guests")
		if code == "" || name == "" {
			return fmt.Errorf("--code and --name are required")
		}

		booking := types.Booking{Code: code, Name: name, ExpectedGuests: guests}
		created, err := createBooking(cmd.Context(), cfg.StoreURL, booking)
		if err != nil {
			return err
		}
		fmt.Printf("Created booking %d (code %s)\n", created.ID, created.Code)
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 10, "maximum number of results")

	bookingCreateCmd.Flags().String("code", "", "booking code")
	bookingCreateCmd.Flags().String("name", "", "attendee name")
	bookingCreateCmd.Flags().Int("expected-guests", 1, "expected guest count")
	bookingCmd.AddCommand(bookingCreateCmd)
}

func printBooking(b *types.Booking) {
	status := "not arrived"
	if b.IsAttended {
		status = "arrived"
		if b.ActualGuests != nil {
			status = fmt.Sprintf("arrived (%d guests)", *b.ActualGuests)
		}
	}
	fmt.Printf("#%d  %s  %s  expected %d  [%s]\n",
		b.ID, b.Code, b.Name, b.ExpectedGuests, status)
}

func printStats(stats types.SyncStats) {
	fmt.Printf("Pending:   %d\n", stats.Pending)
	fmt.Printf("Synced:    %d\n", stats.TotalSynced)
	fmt.Printf("Conflicts: %d\n", stats.TotalConflicts)
	fmt.Printf("Failed:    %d\n", stats.TotalFailed)
	fmt.Printf("Evicted:   %d\n", stats.TotalEvicted)
	if !stats.LastSync.IsZero() {
		fmt.Printf("Last sync: %s\n", stats.LastSync.Format(time.RFC3339))
	}
}

// printFault shows the user-facing guidance for a classified error.
func printFault(err error) {
	fe := faults.Classify(err)
	fmt.Printf("%s: %s\n", fe.Title, fe.Message)
	for _, action := range fe.Actions {
		fmt.Printf("  - %s\n", action)
	}
}

// createBooking posts a new booking to the store API. Kept out of the Store
// interface because the sync engine itself never creates bookings.
func createBooking(ctx context.Context, baseURL string, b types.Booking) (*types.Booking, error) {
	return store.CreateBooking(ctx, baseURL, b)
}
