// Command minispace agrupa las tareas de operación: validar la
// configuración, provisionar el schema de un tenant, hashear contraseñas y
// migrar archivos existentes al formato cifrado.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/minispace/minispace/internal/config"
	"github.com/minispace/minispace/internal/media"
	"github.com/minispace/minispace/internal/observability/logger"
	"github.com/minispace/minispace/internal/security/filecrypt"
	"github.com/minispace/minispace/internal/security/password"
	"github.com/minispace/minispace/internal/store/pg"
	"github.com/minispace/minispace/internal/tenant"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

type globals struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "minispace",
		Short:         "Herramientas de operación de Minispace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.envFile != "" {
				_ = godotenv.Load(g.envFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", envOr("MINISPACE_CONFIG", ""), "ruta a config.yaml (env MINISPACE_CONFIG); vacío = solo env")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "ruta a .env (opcional)")

	root.AddCommand(
		newCheckConfigCmd(g),
		newHashPasswordCmd(),
		newMigrateTenantCmd(g),
		newEncryptExistingCmd(g),
		newDecryptFileCmd(g),
	)
	return root
}

// load lee la configuración e inicializa el logger global.
func (g *globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.ServiceName + "-cli",
		Version:     version,
	})
	return cfg, nil
}

func (g *globals) openStore(ctx context.Context, cfg *config.Config) (*pg.Store, error) {
	return pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{
		MaxConns:        cfg.Storage.MaxConns,
		MinConns:        cfg.Storage.MinConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
	})
}

func newVault(cfg *config.Config) (*media.Vault, error) {
	keys, err := filecrypt.NewKeyring(cfg.MasterKey())
	if err != nil {
		return nil, err
	}
	return media.NewVault(cfg.Media.Dir, keys, nil), nil
}

// ─── check-config ───

func newCheckConfigCmd(g *globals) *cobra.Command {
	var ping bool
	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Valida la configuración (master key, secretos JWT, TTLs)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "env:          %s\n", cfg.App.Env)
			fmt.Fprintf(out, "base_url:     %s\n", cfg.App.BaseURL)
			fmt.Fprintf(out, "cache:        %s\n", cfg.Cache.Kind)
			fmt.Fprintf(out, "access_ttl:   %s\n", cfg.AccessTTL())
			fmt.Fprintf(out, "refresh_ttl:  %s\n", cfg.RefreshTTL())
			fmt.Fprintf(out, "smtp:         %t\n", cfg.SMTPEnabled())
			fmt.Fprintf(out, "master_key:   ok (%d bytes)\n", len(cfg.MasterKey()))
			fmt.Fprintf(out, "media_dir:    %s\n", cfg.Media.Dir)
			if !ping {
				return nil
			}
			st, err := g.openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			fmt.Fprintln(out, "database:     ok")
			return nil
		},
	}
	cmd.Flags().BoolVar(&ping, "ping", false, "además abre el pool y hace ping a la base")
	return cmd
}

// ─── hash-password ───

func newHashPasswordCmd() *cobra.Command {
	var (
		fromStdin bool
		cost      int
	)
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Imprime el hash bcrypt de una contraseña (para seeds manuales)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plain string
			switch {
			case fromStdin:
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				plain = strings.TrimRight(line, "\r\n")
			case len(args) == 1:
				plain = args[0]
			}
			if plain == "" {
				return errors.New("falta la contraseña (argumento o --stdin)")
			}
			h := password.NewHasherWithCosts(1, cost, password.TokenCost)
			hash, err := h.Hash(cmd.Context(), plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "leer la contraseña de stdin")
	cmd.Flags().IntVar(&cost, "cost", password.PasswordCost, "costo bcrypt")
	return cmd
}

// ─── migrate-tenant ───

func newMigrateTenantCmd(g *globals) *cobra.Command {
	var slug string
	cmd := &cobra.Command{
		Use:   "migrate-tenant",
		Short: "Crea o actualiza las tablas de identidad del schema de un tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if slug == "" {
				return errors.New("--tenant es requerido")
			}
			if _, err := tenant.NormalizeSlug(slug); err != nil {
				return err
			}
			cfg, err := g.load()
			if err != nil {
				return err
			}
			st, err := g.openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			schema, err := st.ProvisionTenant(cmd.Context(), slug)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK %s\n", schema)
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "tenant", "", "slug del tenant (ej. acme)")
	return cmd
}

// ─── encrypt-existing ───

func newEncryptExistingCmd(g *globals) *cobra.Command {
	var opts encryptOptions
	cmd := &cobra.Command{
		Use:   "encrypt-existing",
		Short: "Cifra en el lugar los archivos de media y documentos que siguen en claro",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			vault, err := newVault(cfg)
			if err != nil {
				return err
			}
			st, err := g.openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := encryptExisting(cmd.Context(), st, st.Directory(), vault, opts)
			fmt.Fprintln(cmd.OutOrStdout(), stats.String())
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				return fmt.Errorf("encrypt-existing: %d archivos fallaron (ver log)", stats.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Tenant, "tenant", "", "procesar solo este tenant")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "listar sin modificar nada")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", defaultEncryptConcurrency, "tenants en paralelo")
	return cmd
}

// ─── decrypt-file ───

func newDecryptFileCmd(g *globals) *cobra.Command {
	var tenantSlug, rel, ivHex, tagHex, outPath string
	cmd := &cobra.Command{
		Use:   "decrypt-file",
		Short: "Descifra un archivo de la bóveda con la clave del tenant (soporte)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantSlug == "" || rel == "" || ivHex == "" || tagHex == "" {
				return errors.New("--tenant, --path, --iv y --tag son requeridos")
			}
			iv, err := hex.DecodeString(ivHex)
			if err != nil {
				return fmt.Errorf("--iv: %w", err)
			}
			tag, err := hex.DecodeString(tagHex)
			if err != nil {
				return fmt.Errorf("--tag: %w", err)
			}
			cfg, err := g.load()
			if err != nil {
				return err
			}
			vault, err := newVault(cfg)
			if err != nil {
				return err
			}
			pt, err := vault.GetParts(cmd.Context(), tenantSlug, rel, iv, tag)
			if err != nil {
				return err
			}
			if outPath == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(pt)
				return err
			}
			return os.WriteFile(outPath, pt, 0o600)
		},
	}
	cmd.Flags().StringVar(&tenantSlug, "tenant", "", "slug del tenant")
	cmd.Flags().StringVar(&rel, "path", "", "ruta relativa a media.dir")
	cmd.Flags().StringVar(&ivHex, "iv", "", "IV en hex (12 bytes)")
	cmd.Flags().StringVar(&tagHex, "tag", "", "tag en hex (16 bytes)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "archivo de salida (- = stdout)")
	return cmd
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
