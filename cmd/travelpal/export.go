package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/christopherklint97/travelpal/internal/calendar"
	"github.com/christopherklint97/travelpal/internal/export"
	"github.com/christopherklint97/travelpal/internal/store"
	"github.com/christopherklint97/travelpal/internal/trip"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the current plan",
}

var exportICSCmd = &cobra.Command{
	Use:   "ics",
	Short: "Write the plan as an iCalendar file",
	Args:  cobra.NoArgs,
	RunE:  runExportICS,
}

var exportPDFCmd = &cobra.Command{
	Use:   "pdf",
	Short: "Write a printable PDF of the plan",
	Args:  cobra.NoArgs,
	RunE:  runExportPDF,
}

var exportQRCmd = &cobra.Command{
	Use:   "qr",
	Short: "Write a QR code PNG linking to the shared plan",
	Args:  cobra.NoArgs,
	RunE:  runExportQR,
}

var exportLinkCmd = &cobra.Command{
	Use:   "link <event-id>",
	Short: "Print an 'add to Google Calendar' link for one event",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportLink,
}

var exportGoogleCmd = &cobra.Command{
	Use:   "google",
	Short: "Add every kept event to your Google Calendar",
	Args:  cobra.NoArgs,
	RunE:  runExportGoogle,
}

func init() {
	exportICSCmd.Flags().StringP("output", "o", "trip.ics", "output file, - for stdout")
	exportPDFCmd.Flags().StringP("output", "o", "trip.pdf", "output file")
	exportQRCmd.Flags().StringP("output", "o", "trip-qr.png", "output file")
	exportQRCmd.Flags().Int("size", 256, "image size in pixels")

	exportCmd.AddCommand(exportICSCmd, exportPDFCmd, exportQRCmd, exportLinkCmd, exportGoogleCmd)
	rootCmd.AddCommand(exportCmd)
}

// withCurrent runs fn on the current plan.
func withCurrent(fn func(db *store.DB, cur *store.SavedTrip, calOpts calendar.Options) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	calOpts, err := calendarOptions(cfg)
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cur, err := loadCurrent(db)
	if err != nil {
		return err
	}
	return fn(db, cur, calOpts)
}

func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func runExportICS(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("output")
	return withCurrent(func(_ *store.DB, cur *store.SavedTrip, calOpts calendar.Options) error {
		var buf bytes.Buffer
		n, err := calendar.WriteICS(&buf, cur.Plan, calOpts)
		if errors.Is(err, calendar.ErrNoEvents) {
			return errors.New("nothing to export: every event is rejected or has no readable time")
		}
		if err != nil {
			return err
		}
		if err := writeOutput(out, buf.Bytes()); err != nil {
			return err
		}
		if out != "-" {
			fmt.Printf("Wrote %d events to %s\n", n, out)
		}
		return nil
	})
}

func runExportPDF(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("output")
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return withCurrent(func(_ *store.DB, cur *store.SavedTrip, _ calendar.Options) error {
		var buf bytes.Buffer
		opts := export.PDFOptions{ShareURL: export.ShareURL(cfg.Server.PublicURL, cur.ID)}
		if err := export.WritePDF(&buf, cur.Plan, opts); err != nil {
			return err
		}
		if err := writeOutput(out, buf.Bytes()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", out)
		return nil
	})
}

func runExportQR(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("output")
	size, _ := cmd.Flags().GetInt("size")
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return withCurrent(func(_ *store.DB, cur *store.SavedTrip, _ calendar.Options) error {
		link := export.ShareURL(cfg.Server.PublicURL, cur.ID)
		png, err := export.QRCode(link, size)
		if err != nil {
			return err
		}
		if err := writeOutput(out, png); err != nil {
			return err
		}
		fmt.Printf("Wrote %s (%s)\n", out, link)
		return nil
	})
}

func runExportLink(cmd *cobra.Command, args []string) error {
	return withCurrent(func(_ *store.DB, cur *store.SavedTrip, calOpts calendar.Options) error {
		ev, day, ok := trip.FindEvent(cur.Plan, args[0])
		if !ok {
			return fmt.Errorf("no event %q in the current plan", args[0])
		}
		link, err := calendar.GoogleLink(ev, day.Date, calOpts)
		if err != nil {
			return err
		}
		fmt.Println(link)
		return nil
	})
}

func runExportGoogle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	return withCurrent(func(db *store.DB, cur *store.SavedTrip, calOpts calendar.Options) error {
		client := calendar.NewGoogleClient(cfg.Calendar.GoogleToken, cfg.Calendar.GoogleBaseURL, calOpts, logger)
		res, err := client.PushPlan(cmd.Context(), cur.Plan)
		if errors.Is(err, calendar.ErrNoEvents) {
			return errors.New("nothing to add: every event of the plan is rejected")
		}
		if err != nil {
			return fmt.Errorf("pushing to Google Calendar: %w", err)
		}
		if _, err := db.InsertPush(&store.Push{TripID: cur.ID, Succeeded: res.Succeeded, Failed: res.Failed}); err != nil {
			logger.Warn("recording push", "error", err)
		}
		printPushes(os.Stdout, res, db, cur.ID)
		return nil
	})
}

func printPushes(w io.Writer, res calendar.PushResult, db *store.DB, tripID string) {
	fmt.Fprintf(w, "Added %d events to Google Calendar", res.Succeeded)
	if res.Failed > 0 {
		fmt.Fprintf(w, ", %d failed", res.Failed)
	}
	fmt.Fprintln(w, ".")

	pushes, err := db.GetPushes(tripID)
	if err != nil || len(pushes) < 2 {
		return
	}
	fmt.Fprintf(w, "This trip has been pushed %d times; the last before this was %s.\n",
		len(pushes), formatAge(pushes[1].CreatedAt))
}
