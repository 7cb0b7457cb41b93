package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"stratadb/src/auth"
	"stratadb/src/engine"
	"stratadb/src/query"
	"stratadb/src/schema"
	"stratadb/src/settings"
	"stratadb/src/storage"

	"go.uber.org/zap"
)

func main() {
	args := settings.GetSettings()

	flag.StringVar(&args.DataDir, "datadir", "./datafiles", "Directory to store data files")
	flag.StringVar(&args.DatabaseName, "database", "stratadb", "Name of the database to open")
	flag.BoolVar(&args.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&args.Debug, "debug", false, "Enable debug mode")
	flag.BoolVar(&args.AuthEnabled, "auth", false, "Enable authentication")
	flag.BoolVar(&args.SnapshotOnExit, "snapshot", true, "Write a snapshot on shutdown")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if args.Debug {
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stdout"}
		logger, err = z.Build()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if err := os.MkdirAll(args.DataDir, 0755); err != nil {
		sugar.Fatalf("Failed to create data directory: %v", err)
	}

	db := engine.NewDatabase(args.DatabaseName, sugar)
	if args.AuthEnabled {
		users := auth.NewUserStore()
		if _, err := users.AddUser("admin", "admin123"); err != nil {
			sugar.Fatalf("Failed to create admin user: %v", err)
		}
		db.AttachUserStore(users)
		if err := db.ConnectAs("admin", "admin123"); err != nil {
			sugar.Fatalf("Failed to connect: %v", err)
		}
	} else if err := db.Connect(); err != nil {
		sugar.Fatalf("Failed to connect: %v", err)
	}

	store := storage.NewSnapshotStore(args.DataDir, sugar)
	if store.SnapshotExists(db.Name) {
		if err := store.LoadFromFile(db); err != nil {
			sugar.Fatalf("Failed to load snapshot: %v", err)
		}
	}

	executor := query.NewExecutor(db, sugar)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			break
		}
		result, err := executor.Execute(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		printResult(result)
	}

	if args.SnapshotOnExit {
		if err := store.SaveToFile(db); err != nil {
			sugar.Errorf("Failed to save snapshot: %v", err)
		}
	}
	db.Disconnect()
}

func printResult(result *query.Result) {
	if result.Message != "" {
		fmt.Println(result.Message)
		return
	}
	for _, row := range result.Rows {
		parts := make([]string, 0, row.Len())
		for _, f := range row.Fields() {
			v, _ := row.Get(f)
			parts = append(parts, fmt.Sprintf("%s=%s", f, formatValue(v)))
		}
		fmt.Println(strings.Join(parts, ", "))
	}
	fmt.Printf("(%d rows)\n", len(result.Rows))
}

func formatValue(v schema.Value) string {
	if v.IsNull() {
		return "NULL"
	}
	return v.String()
}
