package main

import (
	"chat-room/internal"
	"chat-room/runtime/workers"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	GrpcAddr       string `envconfig:"INSPECT_GRPC_ADDR" default:"localhost:5001"`
	// INSPECT_COLOURS enables colorized headers
	Colours bool `envconfig:"INSPECT_COLOURS" default:"true"`
}

func main() {
	prefix := flag.String("prefix", "doc:", "Prefix to scan, e.g. doc:participants:")
	probe := flag.Bool("health", false, "Also query the health service of a running server")
	flag.Parse()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	color.Enable = config.Colours

	db, err := openDB(config.BadgerFilepath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	rows := internal.Scan(db, *prefix, internal.DocumentMapper)
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf("  ====== %s (%d) ======", *prefix, len(rows))))
	renderTable(os.Stdout, rows)

	if *probe {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := printHealth(ctx, os.Stdout, config.GrpcAddr); err != nil {
			log.Fatal("Health probe failed: ", err)
		}
	}
}

func renderTable(w io.Writer, rows []internal.InspectRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Collection", "Seq", "Id", "Document", "Key"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for _, row := range rows {
		table.Append([]string{row.Collection, row.Seq, row.ID, row.Detail, row.Key})
	}
	table.Render()
}

// printHealth reports the overall status and the presence sweeper status.
func printHealth(ctx context.Context, w io.Writer, addr string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	for _, service := range []string{"", workers.PresenceHealthService} {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return fmt.Errorf("check %q: %w", service, err)
		}
		name := service
		if name == "" {
			name = "server"
		}
		status := resp.GetStatus().String()
		if resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			status = color.FgGreen.Render(status)
		} else {
			status = color.FgRed.Render(status)
		}
		fmt.Fprintf(w, "%-14s %s\n", name, status)
	}
	return nil
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
