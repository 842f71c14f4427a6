// Command riftguard is a thin operator CLI for the policy enforcement
// runtime: it drives the same packages an embedding process would, purely
// in-process, for local validation and demonstration. It is not a network
// service.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/riftguard/riftguard/internal/classifier"
	"github.com/riftguard/riftguard/internal/config"
	"github.com/riftguard/riftguard/internal/dsl"
	"github.com/riftguard/riftguard/internal/envelope"
	"github.com/riftguard/riftguard/internal/passport"
	"github.com/riftguard/riftguard/internal/verify"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "riftguard",
		Short: "Operator CLI for the policy enforcement and governance runtime",
	}

	root.AddCommand(newPolicyValidateCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newEnvelopeDemoCmd())
	root.AddCommand(newPassportInspectCmd())
	root.AddCommand(newConfigInitCmd())

	return root
}

func newPolicyValidateCmd() *cobra.Command {
	var dialect string
	cmd := &cobra.Command{
		Use:   "policy-validate <condition>",
		Short: "Compile a policy condition expression and report any error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			condition := args[0]
			if dialect == "cel" {
				if _, err := dsl.CompileCEL(condition); err != nil {
					return err
				}
				fmt.Println("ok: valid CEL condition")
				return nil
			}
			if _, err := dsl.Compile(condition); err != nil {
				return err
			}
			fmt.Println("ok: valid condition")
			return nil
		},
	}
	cmd.Flags().StringVar(&dialect, "dialect", "", "grammar dialect: default or cel")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var actionString, jurisdiction string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run a canned action through the verification engine with no policies registered (sanity check)",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := verify.NewRegistry()
			engine := verify.NewEngine(registry, classifier.NewEmbeddedClassifier(slog.Default()))
			result := engine.Evaluate(verify.Action{
				AgentID:      "cli-agent",
				ActionString: actionString,
				Jurisdiction: jurisdiction,
			})
			fmt.Printf("allowed=%v final_risk=%d reasoning=%q\n", result.Allowed, result.FinalRisk, result.Reasoning)
			return nil
		},
	}
	cmd.Flags().StringVar(&actionString, "action", "list_files", "action string to verify")
	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "global", "jurisdiction to evaluate under")
	return cmd
}

func newEnvelopeDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "envelope-demo <plaintext>",
		Short: "Encrypt then decrypt a string to demonstrate the state envelope round trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := envelope.NewEngine()
			if err != nil {
				return err
			}
			env, err := eng.Encrypt([]byte(args[0]))
			if err != nil {
				return err
			}
			got, err := eng.Decrypt(env)
			if err != nil {
				return err
			}
			fmt.Printf("key_id=%s algorithm=%d ciphertext=%s\nroundtrip=%q\n", env.KeyID, env.Algorithm, env.Ciphertext, got)
			return nil
		},
	}
	return cmd
}

func newPassportInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passport-inspect",
		Short: "Create a sample memory passport and print its export checksum",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := passport.New(passport.Identity{DID: "did:example:cli-agent", Algorithm: "ed25519"}, "global")
			p.Memory.Preferences["demo"] = "true"
			exported, err := passport.Export(p, "cli-demo-key", "did:example:cli-agent", time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("version=%s checksum=%s\n", exported.Version, exported.Checksum)
			return nil
		},
	}
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "config-init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateDefault(path); err != nil {
				return err
			}
			fmt.Printf("wrote default config to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "riftguard.yaml", "output path")
	return cmd
}
