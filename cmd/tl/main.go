package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"trackline/internal/app"
	"trackline/internal/blobstore"
	"trackline/internal/config"
	"trackline/internal/domain"
	"trackline/internal/engine"
	"trackline/internal/repo"
	"trackline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Trackline CLI",
	Long: `Trackline tracks delivery work in projects and sprints.
- Workspace: a directory holding .trackline (database, attachments) and trackline.yml.
- Containers: projects (PRJ-xxxx) and sprints (SPR-xxxx) with members, one lead each.
- Work items: deliverables/actions flowing pending -> in-progress -> in-review -> done.
- Blockers: impediments reported on items; they drive the container health signal.
- Actions: every mutation goes through 'tl act <action>', mirroring the HTTP API.
- Event log: diary of changes, view with 'tl log tail'.`,
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
	viper.SetEnvPrefix("TRACKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "local-user", "acting user id")
	rootCmd.PersistentFlags().String("user-name", "", "acting user display name")
	rootCmd.PersistentFlags().String("department", "", "acting user department")
	rootCmd.PersistentFlags().Bool("head", false, "act as department head")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("user-name", rootCmd.PersistentFlags().Lookup("user-name"))
	_ = viper.BindPFlag("department", rootCmd.PersistentFlags().Lookup("department"))
	_ = viper.BindPFlag("head", rootCmd.PersistentFlags().Lookup("head"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(peopleCmd())
	rootCmd.AddCommand(containerCmd())
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(actCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
}

func actor() engine.Actor {
	return engine.Actor{
		UserID:         viper.GetString("user"),
		Name:           viper.GetString("user-name"),
		Department:     viper.GetString("department"),
		DepartmentHead: viper.GetBool("head"),
	}
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			env, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer env.Close()
			if _, err := os.Stat(config.Path(workspace)); os.IsNotExist(err) {
				if err := env.Config.Save(workspace); err != nil {
					return err
				}
			}
			fmt.Printf("Workspace ready: %s (config at %s)\n", workspace, config.Path(workspace))
			return nil
		},
	}
	return cmd
}

func peopleCmd() *cobra.Command {
	people := &cobra.Command{
		Use:   "people",
		Short: "Manage the department roster",
		Long:  "The roster is the candidate pool for container memberships. Only roster members of a container's department can join it.",
	}
	people.AddCommand(peopleAddCmd())
	people.AddCommand(peopleListCmd())
	people.AddCommand(peopleRemoveCmd())
	return people
}

func peopleAddCmd() *cobra.Command {
	var userID, name, department, title string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a roster entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || name == "" || department == "" {
				return fmt.Errorf("--id, --name and --department required")
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				p := domain.Person{
					UserID:     userID,
					Name:       name,
					Department: department,
					Title:      title,
					Active:     true,
					CreatedAt:  time.Now().UTC().Format(time.RFC3339),
				}
				if err := env.Engine.Repo.UpsertPerson(ctx, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "id", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&department, "department", "", "department")
	cmd.Flags().StringVar(&title, "title", "", "job title")
	return cmd
}

func peopleListCmd() *cobra.Command {
	var department string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a department roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if department == "" {
				department = viper.GetString("department")
			}
			if department == "" {
				return fmt.Errorf("--department required")
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				people, err := env.Engine.Repo.ListDepartment(ctx, department)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(people)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Title"})
				for _, p := range people {
					tw.AppendRow(table.Row{p.UserID, p.Name, p.Title})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "department")
	return cmd
}

func peopleRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <user-id>",
		Short: "Deactivate a roster entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				return env.Engine.Repo.DeactivatePerson(ctx, args[0])
			})
		},
	}
	return cmd
}

func containerCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "container",
		Short: "Manage projects and sprints",
	}
	c.AddCommand(containerCreateCmd())
	c.AddCommand(containerListCmd())
	c.AddCommand(containerShowCmd())
	c.AddCommand(containerStatusCmd())
	c.AddCommand(containerLeadCmd())
	return c
}

func containerCreateCmd() *cobra.Command {
	var opts engine.CreateContainerOptions
	var members []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project or sprint",
		Long:  "Members are given as id or id:role, e.g. --member alice:lead --member bob. Exactly one lead is required.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Actor = actor()
			parsed, err := parseMembers(members)
			if err != nil {
				return err
			}
			opts.Members = parsed
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				c, err := env.Engine.CreateContainer(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Kind, "kind", "project", "project or sprint")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Department, "department", "", "owning department")
	cmd.Flags().StringVar(&opts.StartDate, "start", "", "start date (RFC3339)")
	cmd.Flags().StringVar(&opts.TargetEndDate, "target-end", "", "project target end date (RFC3339)")
	cmd.Flags().StringVar(&opts.EndDate, "end", "", "sprint end date (RFC3339)")
	cmd.Flags().StringArrayVar(&members, "member", nil, "member as id or id:role")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("department")
	return cmd
}

func parseMembers(raw []string) ([]engine.MemberInput, error) {
	out := make([]engine.MemberInput, 0, len(raw))
	for _, m := range raw {
		id, role, found := strings.Cut(m, ":")
		if id == "" {
			return nil, fmt.Errorf("invalid --member %q", m)
		}
		if !found {
			role = domain.RoleMember
		}
		out = append(out, engine.MemberInput{UserID: id, Role: role})
	}
	return out, nil
}

func containerListCmd() *cobra.Command {
	var f repo.ContainerFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				items, err := env.Engine.Repo.ListContainers(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Number", "Kind", "Title", "Status", "Health", "Pending", "ID"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.Number, c.Kind, c.Title, c.Status, c.Health, c.PendingCount(), c.ID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Kind, "kind", "", "project or sprint")
	cmd.Flags().StringVar(&f.Department, "department", "", "department filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Health, "health", "", "health filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max results")
	return cmd
}

func containerShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <container-id>",
		Short: "Show a container document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				c, err := env.Engine.GetContainer(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c)
				}
				fmt.Printf("%s %s (%s, %s)\n", c.Number, c.Title, c.Status, c.Health)
				fmt.Printf("Department: %s  Version: %d\n", c.Department, c.Version)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Item", "Title", "Status", "Assignees", "Blockers", "Due"})
				for _, w := range c.WorkItems {
					due := ""
					if w.DueDate != nil {
						due = *w.DueDate
					}
					tw.AppendRow(table.Row{w.ID, w.Title, w.Status, strings.Join(w.AssignedTo, ","), w.UnresolvedBlockers(), due})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func containerStatusCmd() *cobra.Command {
	var status string
	var version int64
	cmd := &cobra.Command{
		Use:   "status <container-id>",
		Short: "Toggle the container lifecycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" {
				return fmt.Errorf("--set required")
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				c, err := env.Engine.SetContainerStatus(ctx, args[0], status, version, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&status, "set", "", "new status (active, completed, archived, closed)")
	cmd.Flags().Int64Var(&version, "expect-version", 0, "optimistic concurrency token")
	return cmd
}

func containerLeadCmd() *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "lead <container-id> <user-id>",
		Short: "Reassign the container lead",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				c, err := env.Engine.ReassignLead(ctx, args[0], args[1], version, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().Int64Var(&version, "expect-version", 0, "optimistic concurrency token")
	return cmd
}

func itemCmd() *cobra.Command {
	item := &cobra.Command{
		Use:   "item",
		Short: "Manage work items",
	}
	item.AddCommand(itemAddCmd())
	return item
}

func itemAddCmd() *cobra.Command {
	var opts engine.CreateWorkItemOptions
	var files []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a work item to a container",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Actor = actor()
			uploads, err := readUploads(files)
			if err != nil {
				return err
			}
			opts.Files = uploads
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				c, err := env.Engine.CreateWorkItem(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ContainerID, "container", "", "container id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringArrayVar(&opts.AssignedTo, "assignee", nil, "assignee user id (repeatable)")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (RFC3339, owner only)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "attachment file path (repeatable)")
	_ = cmd.MarkFlagRequired("container")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func actCmd() *cobra.Command {
	var req engine.ActionRequest
	var blockerIndex int
	var memberID, memberRole string
	var files []string
	cmd := &cobra.Command{
		Use:   "act <action>",
		Short: "Apply a workflow action",
		Long: `Actions: start-work, submit-for-review, report-blocker, resolve-blocker,
change-status, reopen, update-deadline, add-comment, add-member, remove-member,
add-chat-message. Work-item actions need --item; membership actions read
--member (and --member-role for container add-member).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Action = args[0]
			req.Actor = actor()
			if cmd.Flags().Changed("blocker") {
				req.BlockerIndex = &blockerIndex
			}
			if memberID != "" {
				req.MemberID = memberID
				if req.WorkItemID == "" {
					req.Member = &engine.MemberInput{UserID: memberID, Role: memberRole}
				}
			}
			uploads, err := readUploads(files)
			if err != nil {
				return err
			}
			req.Files = uploads
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				c, err := env.Engine.Apply(ctx, req)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&req.ContainerID, "container", "", "container id")
	cmd.Flags().StringVar(&req.WorkItemID, "item", "", "work item id")
	cmd.Flags().Int64Var(&req.ExpectedVersion, "expect-version", 0, "optimistic concurrency token")
	cmd.Flags().StringVar(&req.Note, "note", "", "submission note")
	cmd.Flags().StringVar(&req.Description, "description", "", "blocker description")
	cmd.Flags().StringVar(&req.Message, "message", "", "comment or chat message")
	cmd.Flags().StringVar(&req.NewStatus, "status", "", "target status for change-status")
	cmd.Flags().StringVar(&req.NewDueDate, "due", "", "new due date for update-deadline")
	cmd.Flags().IntVar(&blockerIndex, "blocker", 0, "blocker index for resolve-blocker")
	cmd.Flags().StringVar(&memberID, "member", "", "member user id")
	cmd.Flags().StringVar(&memberRole, "member-role", "member", "role for container add-member")
	cmd.Flags().StringArrayVar(&files, "file", nil, "attachment file path (repeatable)")
	_ = cmd.MarkFlagRequired("container")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var containerID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if containerID == "" {
				return fmt.Errorf("--container required")
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				events, err := env.Engine.Repo.LatestEvents(ctx, containerID, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Item", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.WorkItemID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&containerID, "container", "", "container id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			env, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer env.Close()
			secret := os.Getenv("TRACKLINE_JWT_SECRET")
			if secret == "" {
				secret = env.Config.Auth.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("TRACKLINE_JWT_SECRET or auth.jwt_secret is required for bearer auth")
			}
			if addr == "" {
				addr = env.Config.Server.Addr
			}
			handler, err := server.New(server.Config{
				Engine:   env.Engine,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret:      secret,
					AllowDevTokens: env.Config.Auth.AllowDevTokens,
				},
				Logger: env.Logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			env.Logger.Info("serving trackline api",
				zap.String("addr", addr), zap.String("base_path", basePath))
			fmt.Printf("Serving Trackline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			secret := os.Getenv("TRACKLINE_JWT_SECRET")
			if secret == "" {
				secret = cfg.Auth.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("TRACKLINE_JWT_SECRET or auth.jwt_secret is required")
			}
			a := actor()
			token, err := server.MintToken(secret, a, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

// --- helpers ---

func withEnv(ctx context.Context, fn func(context.Context, *app.Env) error) error {
	env, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

func readUploads(paths []string) ([]blobstore.Upload, error) {
	uploads := make([]blobstore.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		contentType := mime.TypeByExtension(filepath.Ext(p))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		uploads = append(uploads, blobstore.Upload{
			Name: filepath.Base(p),
			Type: contentType,
			Data: data,
		})
	}
	return uploads, nil
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
