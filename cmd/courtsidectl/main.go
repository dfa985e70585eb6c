// Command courtsidectl is a front-desk tool for the booking API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"courtside/internal/client"
	"courtside/internal/config"
	"courtside/internal/models"
	"courtside/internal/repository"
)

const usage = `usage: courtsidectl [flags] <command> [args]

commands:
  sports                                  list active sports
  grid <sport> <date>                     show the 24-slot grid
  book <sport> <date> <HH:MM> <hours> <name> <phone>
  walk-in <sport> <date> <HH:MM> <hours> <name> <phone>
  cancel <booking-id>
  schedule <date>                         all bookings on a date (admin key)
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("courtsidectl", flag.ContinueOnError)
	var (
		baseURL   = fs.String("url", envOr("COURTSIDE_URL", "http://localhost:8080"), "API base URL")
		apiKey    = fs.String("key", os.Getenv("COURTSIDE_API_KEY"), "API key")
		apiExtra  = fs.String("extra", os.Getenv("COURTSIDE_API_EXTRA"), "API extra header")
		guestID   = fs.String("guest", os.Getenv("COURTSIDE_GUEST_ID"), "guest identity for customer commands")
		redisAddr = fs.String("redis", os.Getenv("REDIS_ADDR"), "optional Redis address for read caching")
		timeout   = fs.Duration("timeout", 15*time.Second, "request timeout")
	)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	c := client.New(*baseURL, *apiKey, *apiExtra)
	if *guestID != "" {
		c.ActAs(*guestID)
	}
	if *redisAddr != "" {
		rdb := repository.NewRedisClient(config.RedisConfig{Address: *redisAddr})
		defer rdb.Close()
		c.UseRedisCache(rdb, 30*time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "sports":
		sports, err := c.ListSports(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tBASE PRICE\tDURATIONS")
		for _, s := range sports {
			fmt.Fprintf(tw, "%d\t%s\t%.2f\t%v\n", s.ID, s.Name, s.BasePrice, s.DurationOptions)
		}
		return tw.Flush()

	case "grid":
		if len(rest) != 2 {
			return errors.New("grid needs <sport> <date>")
		}
		slots, err := c.GetAvailability(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SLOT\tSTATUS\tPRICE")
		for _, s := range slots {
			fmt.Fprintf(tw, "%s-%s\t%s\t%.2f\n", s.StartTime, s.EndTime, s.Status, s.Price)
		}
		return tw.Flush()

	case "book", "walk-in":
		if len(rest) != 6 {
			return fmt.Errorf("%s needs <sport> <date> <HH:MM> <hours> <name> <phone>", cmd)
		}
		hours, err := strconv.ParseFloat(rest[3], 64)
		if err != nil {
			return fmt.Errorf("invalid hours %q", rest[3])
		}
		req := client.BookingRequest{
			Sport: rest[0], Date: rest[1], StartTime: rest[2], Duration: hours,
			CustomerName: rest[4], CustomerPhone: rest[5],
		}
		var b *models.Booking
		if cmd == "walk-in" {
			b, err = c.CreateWalkIn(ctx, req)
		} else {
			b, err = c.CreateBooking(ctx, req)
		}
		if err != nil {
			return err
		}
		printBooking(out, b)
		return nil

	case "cancel":
		if len(rest) != 1 {
			return errors.New("cancel needs <booking-id>")
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid booking id %q", rest[0])
		}
		b, err := c.CancelBooking(ctx, id)
		if err != nil {
			return err
		}
		printBooking(out, b)
		return nil

	case "schedule":
		if len(rest) != 1 {
			return errors.New("schedule needs <date>")
		}
		bookings, err := c.DaySchedule(ctx, rest[0])
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSPORT\tTIME\tCUSTOMER\tSTATUS\tPAYMENT\tAMOUNT")
		for _, b := range bookings {
			fmt.Fprintf(tw, "%d\t%s\t%s-%s\t%s\t%s\t%s\t%.2f\n",
				b.ID, b.SportName, b.StartTime, b.EndTime, b.CustomerName, b.Status, b.PaymentStatus, b.Amount)
		}
		return tw.Flush()
	}

	fs.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func printBooking(out io.Writer, b *models.Booking) {
	fmt.Fprintf(out, "booking #%d %s %s %s-%s %s amount=%.2f payment=%s\n",
		b.ID, b.SportName, b.Date, b.StartTime, b.EndTime, b.Status, b.Amount, b.PaymentStatus)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
