package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iwvelando/project-feasibility/internal/config"
	"github.com/iwvelando/project-feasibility/internal/forecast"
	"github.com/iwvelando/project-feasibility/internal/logging"
	"github.com/iwvelando/project-feasibility/internal/optimizer"
	"github.com/iwvelando/project-feasibility/pkg/constants"
	"github.com/iwvelando/project-feasibility/pkg/output"
	"github.com/iwvelando/project-feasibility/pkg/validation"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, xlsx, json")
	outputFile := flag.String("output-file", "", "workbook path for xlsx output")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	optimize := flag.Bool("optimize", true, "solve optimizer directives before running scenarios")
	flag.Parse()

	// A missing .env is not an error; PF_* variables may come from the shell.
	_ = godotenv.Load()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := logging.New(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Determine output format (CLI override takes precedence over config)
	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}

	err = validation.ValidateOutputFormat(outputFormat)
	if err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	// Validate configuration and display any warnings
	warnings := conf.ValidateConfiguration()
	for _, warning := range warnings {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	// Solve optimizer directives; solved values are written into conf.
	var optimizationResult *optimizer.Result
	if *optimize {
		runner, err := optimizer.NewRunner(logger, conf)
		if err != nil {
			logger.Fatal("failed to initialize optimizer",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		optimizationResult, err = runner.Run()
		if err != nil {
			logger.Fatal("failed to run optimizer",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}

	results, err := forecast.GetForecast(logger, *conf)
	if err != nil {
		logger.Fatal("failed to compute forecast",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	if optimizationResult != nil && !optimizationResult.Empty() {
		optimizationResult.Apply(results)
	}

	// Handle output.
	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettyFormat(results)
	case constants.OutputFormatCSV:
		err = output.CsvFormat(results)
	case constants.OutputFormatJSON:
		err = output.JSONFormat(results)
	case constants.OutputFormatXLSX:
		path := conf.Output.File
		if *outputFile != "" {
			path = *outputFile
		}
		if path == "" {
			path = constants.DefaultXLSXFile
		}
		err = output.XLSXFormat(results, path)
		if err == nil {
			logger.Info("wrote workbook",
				zap.String("op", "main"),
				zap.String("path", path),
			)
		}
	}
	if err != nil {
		logger.Fatal("failed to write output",
			zap.String("op", "main"),
			zap.String("format", outputFormat),
			zap.Error(err),
		)
	}
}
