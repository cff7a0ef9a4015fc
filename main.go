/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudwego/abdoc/internal/config"
	"github.com/cloudwego/abdoc/internal/mcp"
	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/project"
	"github.com/cloudwego/abdoc/internal/server"
	"github.com/cloudwego/abdoc/internal/service"
	"github.com/cloudwego/abdoc/internal/templates"
	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/log"
	"github.com/cloudwego/abdoc/llm/prompt"
	"github.com/cloudwego/abdoc/version"
	"golang.org/x/sync/errgroup"
)

const Usage = `abdoc <Action> [Args] [Flags]
Action:
   new          create a project from -name, -description, -targets, -type and -scope
   projects     list the projects of -user
   generate     generate a document: abdoc generate <template> -project <id>
   assets       generate color, typography and logo options: abdoc assets -project <id>
   branding     choose generated options: abdoc branding -project <id> -color <id> -typography <id> -logo <id>
   templates    list the available document templates
   serve        run the HTTP server
   mcp          run as a MCP server over stdio
   version      print the version of abdoc
Env:
   API_TYPE, API_KEY, MODEL_NAME, BASE_URL configure the default model.
`

func main() {
	flags := flag.NewFlagSet("abdoc", flag.ExitOnError)

	flagHelp := flags.Bool("h", false, "Show help message.")
	flagVerbose := flags.Bool("verbose", false, "Verbose mode.")
	flagConfig := flags.String("config", "", "Config file path (YAML).")
	flagUser := flags.String("user", "local", "User id owning the projects.")
	flagProject := flags.String("project", "", "Project id.")
	flagStream := flags.Bool("stream", false, "Print every section event as a JSON line while generating.")
	flagModel := flags.String("model", "", "Model alias or name to generate with.")
	flagProvider := flags.String("provider", "", "Model provider to generate with.")

	var selection service.BrandingSelection
	flags.StringVar(&selection.ColorID, "color", "", "generated color palette id (branding)")
	flags.StringVar(&selection.TypographyID, "typography", "", "generated typography id (branding)")
	flags.StringVar(&selection.LogoID, "logo", "", "generated logo id (branding)")

	var newProject project.Project
	flags.StringVar(&newProject.Name, "name", "", "project name (new)")
	flags.StringVar(&newProject.Description, "description", "", "project description (new)")
	flags.StringVar(&newProject.Targets, "targets", "", "project targets (new)")
	flags.StringVar(&newProject.Type, "type", "", "project type (new)")
	flags.StringVar(&newProject.Scope, "scope", "", "project scope (new)")

	flags.Usage = func() {
		fmt.Fprint(os.Stderr, Usage)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flags.PrintDefaults()
	}

	if len(os.Args) < 2 {
		flags.Usage()
		os.Exit(1)
	}
	action := strings.ToLower(os.Args[1])
	if action == "version" {
		fmt.Fprintf(os.Stdout, "%s\n", version.Version)
		return
	}

	args := parseArgsAndFlags(flags, flagHelp, flagVerbose)
	load := config.Load
	if action == "templates" || action == "new" || action == "projects" {
		// no model is called
		load = config.Read
	}
	cfg, err := load(*flagConfig)
	if err != nil {
		log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	if !*flagVerbose {
		log.SetLogLevel(log.ParseLevel(cfg.LogLevel))
	}
	if action == "mcp" {
		// stdout carries the protocol
		log.SetOutput(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := service.Request{UserID: *flagUser, ProjectID: *flagProject, Model: *flagModel, Provider: *flagProvider}

	switch action {
	case "templates":
		reg, err := templates.NewRegistry(cfg.TemplatesDir)
		if err != nil {
			log.Error("Failed to load templates: %v", err)
			os.Exit(1)
		}
		for _, t := range reg.List() {
			fmt.Fprintf(os.Stdout, "%-16s %s (%d steps, %s)\n", t.Name, t.Description, len(t.Steps), t.Source)
		}

	case "new":
		store, err := project.NewFileStore(cfg.DataDir)
		if err != nil {
			log.Error("Failed to open data dir: %v", err)
			os.Exit(1)
		}
		newProject.UserID = *flagUser
		p, err := store.Create(ctx, &newProject)
		if err != nil {
			log.Error("Failed to create project: %v", err)
			os.Exit(1)
		}
		printJSON(p)

	case "projects":
		store, err := project.NewFileStore(cfg.DataDir)
		if err != nil {
			log.Error("Failed to open data dir: %v", err)
			os.Exit(1)
		}
		list, err := store.List(ctx, *flagUser)
		if err != nil {
			log.Error("Failed to list projects: %v", err)
			os.Exit(1)
		}
		for _, p := range list {
			fmt.Fprintf(os.Stdout, "%s  %s\n", p.ID, p.Name)
		}

	case "generate":
		if len(args) == 0 || req.ProjectID == "" {
			log.Error("Usage: abdoc generate <template> -project <id>")
			os.Exit(1)
		}
		req.Template = args[0]
		svc, _ := mustService(cfg)
		var consume pipeline.Consumer
		if *flagStream {
			enc := json.NewEncoder(os.Stdout)
			consume = func(_ context.Context, r pipeline.SectionResult) error {
				return enc.Encode(r)
			}
		}
		p, err := svc.Generate(ctx, req, consume)
		if err != nil {
			log.Error("Failed to generate %s: %v", req.Template, err)
			os.Exit(1)
		}
		if !*flagStream {
			doc, err := svc.GetDocument(ctx, p.UserID, p.ID, req.Template)
			if err != nil {
				log.Error("Failed to read document: %v", err)
				os.Exit(1)
			}
			printJSON(doc)
		}

	case "assets":
		if req.ProjectID == "" {
			log.Error("Usage: abdoc assets -project <id>")
			os.Exit(1)
		}
		svc, _ := mustService(cfg)
		assets, err := svc.GenerateBrandAssets(ctx, req)
		if err != nil {
			log.Error("Failed to generate brand assets: %v", err)
			os.Exit(1)
		}
		printJSON(assets)

	case "branding":
		if req.ProjectID == "" {
			log.Error("Usage: abdoc branding -project <id> [-color <id>] [-typography <id>] [-logo <id>]")
			os.Exit(1)
		}
		svc, _ := mustService(cfg)
		b, err := svc.UpdateBranding(ctx, req.UserID, req.ProjectID, selection)
		if err != nil {
			log.Error("Failed to update branding: %v", err)
			os.Exit(1)
		}
		printJSON(b)

	case "serve":
		svc, usage := mustService(cfg)
		srv := server.New(server.Options{
			Service:       svc,
			Usage:         usage,
			RatePerMinute: cfg.Server.RatePerMinute,
			Burst:         cfg.Server.Burst,
		})
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(gctx, cfg.Server.Addr) })
		if cfg.TemplatesDir != "" {
			g.Go(func() error { return svc.WatchTemplates(gctx) })
		}
		if err := g.Wait(); err != nil {
			log.Error("Server stopped: %v", err)
			os.Exit(1)
		}

	case "mcp":
		svc, _ := mustService(cfg)
		svr := mcp.NewServer(mcp.ServerOptions{
			ServerName:    "abdoc",
			ServerVersion: version.Version,
			Verbose:       *flagVerbose,
			Service:       svc,
		})
		if err := svr.ServeStdio(); err != nil {
			log.Error("Failed to run MCP server: %v", err)
			os.Exit(1)
		}

	default:
		flags.Usage()
		os.Exit(1)
	}
}

// parseArgsAndFlags returns the positional arguments after the action.
func parseArgsAndFlags(flags *flag.FlagSet, flagHelp *bool, flagVerbose *bool) []string {
	var args []string
	rest := os.Args[2:]
	for len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		args = append(args, rest[0])
		rest = rest[1:]
	}
	flags.Parse(rest)
	args = append(args, flags.Args()...)

	if flagHelp != nil && *flagHelp {
		flags.Usage()
		os.Exit(0)
	}
	if flagVerbose != nil && *flagVerbose {
		log.SetLogLevel(log.DebugLevel)
	}
	return args
}

func mustService(cfg config.Config) (*service.Service, *llm.UsageMeter) {
	usage := llm.NewUsageMeter()
	opts := llm.BackendOptions{
		Models:       cfg.Models,
		DefaultModel: cfg.DefaultModel,
		Retries:      cfg.Retries,
		Usage:        usage,
	}
	if cfg.SystemPrompt != "" {
		sys, err := prompt.NewFilePrompt(&prompt.FilePrompt{Type: prompt.PromptTypeGoTemplate, Path: cfg.SystemPrompt})
		if err != nil {
			log.Error("Failed to load system prompt: %v", err)
			os.Exit(1)
		}
		opts.SysPrompt = sys
	}
	backend, err := llm.NewChatBackend(opts)
	if err != nil {
		log.Error("Failed to create model backend: %v", err)
		os.Exit(1)
	}
	store, err := project.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Error("Failed to open data dir: %v", err)
		os.Exit(1)
	}
	reg, err := templates.NewRegistry(cfg.TemplatesDir)
	if err != nil {
		log.Error("Failed to load templates: %v", err)
		os.Exit(1)
	}
	svc, err := service.New(service.Options{Store: store, Templates: reg, Backend: backend})
	if err != nil {
		log.Error("Failed to create service: %v", err)
		os.Exit(1)
	}
	return svc, usage
}

func printJSON(v any) {
	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error("Failed to encode output: %v", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "%s\n", bs)
}
