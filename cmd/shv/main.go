package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shelvey/internal/config"
	"shelvey/internal/db"
	"shelvey/internal/domain"
	"shelvey/internal/engine"
	"shelvey/internal/migrate"
	"shelvey/internal/repo"
	"shelvey/internal/reviewer"
	"shelvey/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "shv",
	Short: "ShelVey CLI",
	Long: `ShelVey coordinates an AI workforce's deliverables through a two-principal
approval gate. Deliverables need sign-off from both the CEO agent and the
human user before they count as approved; a rejection with feedback restarts
the cycle. The team manager assigns pending work to idle members, collects
submissions for review, and every state change lands in the activity log.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("SHELVEY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(deliverableCmd())
	rootCmd.AddCommand(websiteCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func teamCmd() *cobra.Command {
	team := &cobra.Command{
		Use:   "team",
		Short: "Manage the team",
		Long:  "The roster lives in shelvey.yml: exactly one manager plus leads and members. Workflow actions move member status between idle, working, reviewing, and active; they never add or remove members.",
	}
	team.AddCommand(teamInitCmd())
	team.AddCommand(teamStatusCmd())
	team.AddCommand(teamAssignCmd())
	team.AddCommand(teamAutoAssignCmd())
	team.AddCommand(teamReviewCompleteCmd())
	return team
}

func teamInitCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize workspace, config, and roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			workspace := viper.GetString("workspace")
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault(id)), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", cfgPath)
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := newEngine(conn, cfg)
			if err := e.InitTeam(cmd.Context(), id, name, cfg.Roster, viper.GetString("actor-id")); err != nil {
				return err
			}
			st, err := e.TeamStatus(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printTeamStatus(st)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "team id")
	cmd.Flags().StringVar(&name, "name", "", "team name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func teamStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show roster and deliverable counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.TeamStatus(ctx, e.Config.Team.ID)
				if err != nil {
					return err
				}
				return printTeamStatus(st)
			})
		},
	}
	return cmd
}

func teamAssignCmd() *cobra.Command {
	var deliverableID, agentID string
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign a deliverable to an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deliverableID == "" || agentID == "" {
				return fmt.Errorf("--deliverable and --agent required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.AssignTask(ctx, deliverableID, agentID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&deliverableID, "deliverable", "", "deliverable id")
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id")
	return cmd
}

func teamAutoAssignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auto-assign",
		Short: "Pair pending deliverables with idle members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				assignments, err := e.AutoAssignPending(ctx, e.Config.Team.ID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(assignments)
				}
				if len(assignments) == 0 {
					fmt.Println("Nothing to assign: no pending deliverables or no idle members.")
					return nil
				}
				t := newTable()
				t.AppendHeader(table.Row{"Deliverable", "Name", "Agent", "Role"})
				for _, a := range assignments {
					t.AppendRow(table.Row{a.Deliverable.ID, a.Deliverable.Name, a.Agent.AgentID, a.Agent.Role})
				}
				t.Render()
				return nil
			})
		},
	}
	return cmd
}

func teamReviewCompleteCmd() *cobra.Command {
	var managerID string
	cmd := &cobra.Command{
		Use:   "review-complete",
		Short: "Return the manager to active after a review",
		RunE: func(cmd *cobra.Command, args []string) error {
			if managerID == "" {
				return fmt.Errorf("--manager required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CompleteReviewCycle(ctx, managerID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&managerID, "manager", "", "manager agent id")
	return cmd
}

func deliverableCmd() *cobra.Command {
	del := &cobra.Command{
		Use:   "deliverable",
		Short: "Manage deliverables",
		Long:  "Deliverables flow pending -> in_progress -> review -> approved. Approval needs both the CEO and the user; a rejection with feedback sends the work back to pending with both sign-offs cleared.",
	}
	del.AddCommand(deliverableCreateCmd())
	del.AddCommand(deliverableListCmd())
	del.AddCommand(deliverableShowCmd())
	del.AddCommand(deliverableApproveCmd())
	del.AddCommand(deliverableRejectCmd())
	del.AddCommand(deliverableSubmitCmd())
	return del
}

func deliverableCreateCmd() *cobra.Command {
	var opts engine.DeliverableCreateOptions
	var contentFile string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a deliverable",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return err
				}
				opts.ContentJSON = string(data)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.TeamID == "" {
					opts.TeamID = e.Config.Team.ID
				}
				d, err := e.CreateDeliverable(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "deliverable id (optional)")
	cmd.Flags().StringVar(&opts.TeamID, "team", "", "team id")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "phase")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Type, "type", "report", "type (report, design, code, analysis, other)")
	cmd.Flags().StringVar(&contentFile, "content", "", "path to content JSON")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func deliverableListCmd() *cobra.Command {
	var status, phase, agentID string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deliverables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListDeliverables(ctx, repo.DeliverableFilters{
					TeamID:          e.Config.Team.ID,
					Status:          status,
					Phase:           phase,
					AssignedAgentID: agentID,
					Limit:           limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := newTable()
				t.AppendHeader(table.Row{"ID", "Name", "Type", "Status", "CEO", "User", "Agent"})
				for _, d := range items {
					t.AppendRow(table.Row{d.ID, d.Name, d.Type, d.Status, mark(d.CEOApproved), mark(d.UserApproved), deref(d.AssignedAgentID)})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&phase, "phase", "", "phase filter")
	cmd.Flags().StringVar(&agentID, "agent", "", "assigned agent filter")
	cmd.Flags().IntVar(&limit, "n", 50, "max rows")
	return cmd
}

func deliverableShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a deliverable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.Repo.GetDeliverable(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	return cmd
}

func deliverableApproveCmd() *cobra.Command {
	var approver string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Record an approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SubmitApproval(ctx, engine.ApprovalOptions{
					DeliverableID: args[0],
					Approver:      approver,
					Approved:      true,
					ActorID:       viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				if !viper.GetBool("json") && res.FullyApproved {
					fmt.Println("Fully approved.")
				}
				return printJSONOrTable(res.Deliverable)
			})
		},
	}
	cmd.Flags().StringVar(&approver, "as", "user", "approver (ceo or user)")
	return cmd
}

func deliverableRejectCmd() *cobra.Command {
	var approver, feedback string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject with feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if feedback == "" {
				return fmt.Errorf("--feedback required; a rejection without feedback is recorded as an approval")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SubmitApproval(ctx, engine.ApprovalOptions{
					DeliverableID: args[0],
					Approver:      approver,
					Approved:      false,
					Feedback:      feedback,
					ActorID:       viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(res.Deliverable)
			})
		},
	}
	cmd.Flags().StringVar(&approver, "as", "user", "approver (ceo or user)")
	cmd.Flags().StringVar(&feedback, "feedback", "", "rejection feedback")
	return cmd
}

func deliverableSubmitCmd() *cobra.Command {
	var agentID, contentFile string
	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit a deliverable for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if agentID == "" {
				return fmt.Errorf("--agent required")
			}
			content := ""
			if contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return err
				}
				content = string(data)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.SubmitForReview(ctx, args[0], agentID, content, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "submitting agent id")
	cmd.Flags().StringVar(&contentFile, "content", "", "path to content JSON")
	return cmd
}

func websiteCmd() *cobra.Command {
	web := &cobra.Command{Use: "website", Short: "Manage websites"}
	web.AddCommand(websiteCreateCmd())
	web.AddCommand(websiteListCmd())
	web.AddCommand(websiteApproveCmd())
	web.AddCommand(websiteRejectCmd())
	return web
}

func websiteCreateCmd() *cobra.Command {
	var opts engine.WebsiteCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a website",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.TeamID == "" {
					opts.TeamID = e.Config.Team.ID
				}
				w, err := e.CreateWebsite(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "website id (optional)")
	cmd.Flags().StringVar(&opts.TeamID, "team", "", "team id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.URL, "url", "", "site url")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func websiteListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List websites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListWebsites(ctx, e.Config.Team.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := newTable()
				t.AppendHeader(table.Row{"ID", "Name", "URL", "Status", "CEO", "User"})
				for _, w := range items {
					t.AppendRow(table.Row{w.ID, w.Name, w.URL, w.Status, mark(w.CEOApproved), mark(w.UserApproved)})
				}
				t.Render()
				return nil
			})
		},
	}
	return cmd
}

func websiteApproveCmd() *cobra.Command {
	var approver string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Record a website approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SubmitWebsiteApproval(ctx, engine.WebsiteApprovalOptions{
					WebsiteID: args[0],
					Approver:  approver,
					Approved:  true,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(res.Website)
			})
		},
	}
	cmd.Flags().StringVar(&approver, "as", "user", "approver (ceo or user)")
	return cmd
}

func websiteRejectCmd() *cobra.Command {
	var approver, feedback string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a website",
		Long:  "A CEO rejection without --feedback asks the configured reviewer to synthesize the rejection reason.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SubmitWebsiteApproval(ctx, engine.WebsiteApprovalOptions{
					WebsiteID: args[0],
					Approver:  approver,
					Approved:  false,
					Feedback:  feedback,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(res.Website)
			})
		},
	}
	cmd.Flags().StringVar(&approver, "as", "ceo", "approver (ceo or user)")
	cmd.Flags().StringVar(&feedback, "feedback", "", "rejection feedback (optional for ceo)")
	return cmd
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{Use: "log", Short: "Inspect the activity log"}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var n int
	var agentID, action string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail activity entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.Repo.LatestActivity(ctx, n, 0, e.Config.Team.ID, agentID, action)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				t := newTable()
				t.AppendHeader(table.Row{"ID", "Agent", "Action", "Status", "At"})
				for _, entry := range entries {
					t.AppendRow(table.Row{entry.ID, entry.AgentID, entry.Action, entry.Status, entry.CreatedAt})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	cmd.Flags().StringVar(&agentID, "agent", "", "agent filter")
	cmd.Flags().StringVar(&action, "action", "", "action filter")
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (secret printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				actorID = viper.GetString("actor-id")
			}
			secret := uuid.New().String()
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				key := domain.APIKey{
					ID:        uuid.New().String(),
					ActorID:   actorID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, tx, key); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "actor_id": key.ActorID, "secret": secret})
				}
				fmt.Printf("API key %s for %s\nSecret (save it now): %s\n", key.ID, key.ActorID, secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				t := newTable()
				t.AppendHeader(table.Row{"ID", "Actor", "Name", "Created", "Last used"})
				for _, k := range keys {
					t.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt, k.LastUsedAt})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			e := newEngine(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              cfg.Auth.JWTSecret,
				AllowLegacyActorHeader: cfg.Auth.AllowLegacyActorHeader,
			}
			if authCfg.JWTSecret == "" {
				authCfg.JWTSecret = os.Getenv("SHELVEY_JWT_SECRET")
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("jwt secret required: set auth.jwt_secret in shelvey.yml or SHELVEY_JWT_SECRET")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(e)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving ShelVey API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func newEngine(conn *sql.DB, cfg *config.Config) engine.Engine {
	e := engine.New(conn, cfg)
	e.Reviewer = reviewer.New(cfg.Reviewer.Provider, cfg.Reviewer.Model)
	return e
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	return fn(ctx, newEngine(conn, cfg))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printTeamStatus(st engine.TeamStatusResult) error {
	if viper.GetBool("json") {
		return printJSON(st)
	}
	t := newTable()
	t.AppendHeader(table.Row{"Agent", "Name", "Role", "Status", "Current task"})
	for _, m := range st.Members {
		t.AppendRow(table.Row{m.AgentID, m.AgentName, m.Role, m.Status, deref(m.CurrentTask)})
	}
	t.Render()
	fmt.Println("Deliverables:")
	for status, c := range st.DeliverableCounts {
		fmt.Printf("  %s: %d\n", status, c)
	}
	return nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
