package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bitmark-inc/keystore-wallet"
	"github.com/bitmark-inc/keystore-wallet/agent"
	"github.com/bitmark-inc/keystore-wallet/ptyexec"
	"github.com/bitmark-inc/keystore-wallet/secret"
)

func vanityOptions(flags *pflag.FlagSet) agent.VanityOptions {
	var opts agent.VanityOptions
	if f := flags.Lookup("starts-with"); f != nil && f.Changed {
		opts.StartsWith = f.Value.String()
	}
	if f := flags.Lookup("ends-with"); f != nil && f.Changed {
		opts.EndsWith = f.Value.String()
	}
	return opts
}

func printKeystore(k wallet.Keystore) {
	fmt.Printf("Label:   %s\n", k.Label)
	fmt.Printf("Address: %s\n", k.Address)
}

// cancelOnInterrupt cancels job when the user presses Ctrl-C. The returned
// function stops listening.
func cancelOnInterrupt(registry *ptyexec.Registry, job string) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	quit := make(chan struct{})
	go func() {
		select {
		case <-ch:
			log.WithField("job", job).Info("interrupted, cancelling")
			if err := registry.Cancel(job); err != nil {
				log.WithError(err).Warn("cancel")
			}
		case <-quit:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(quit)
	}
}

func addKeystoreCommands(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "new LABEL",
		Short: "generate a new key and store it as keystore LABEL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, done, err := openWallet()
			if err != nil {
				return err
			}
			defer done()

			pw, err := readNewPassword("Set keystore password (length >= 8): ")
			if err != nil {
				return err
			}
			defer pw.Release()

			k, err := w.Create(args[0], pw)
			if err != nil {
				return err
			}
			printKeystore(k)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "import LABEL",
		Short: "import a private key as keystore LABEL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, done, err := openWallet()
			if err != nil {
				return err
			}
			defer done()

			key, err := readSecret("Enter private key: ")
			if err != nil {
				return err
			}
			defer key.Release()

			pw, err := readNewPassword("Set keystore password (length >= 8): ")
			if err != nil {
				return err
			}
			defer pw.Release()

			k, err := w.Import(args[0], key, pw)
			if err != nil {
				return err
			}
			printKeystore(k)
			return nil
		},
	})

	vanityCmd := &cobra.Command{
		Use:   "vanity LABEL",
		Short: "search for a key with a chosen address prefix or suffix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := vanityOptions(cmd.Flags())

			w, registry, done, err := openWallet()
			if err != nil {
				return err
			}
			defer done()

			pw, err := readNewPassword("Set keystore password (length >= 8): ")
			if err != nil {
				return err
			}
			defer pw.Release()

			fmt.Println("Searching, press Ctrl-C to stop")
			stop := cancelOnInterrupt(registry, ptyexec.CurrentJob)
			defer stop()

			k, err := w.Vanity(ptyexec.CurrentJob, args[0], opts, pw)
			if err != nil {
				return err
			}
			printKeystore(k)
			return nil
		},
	}
	vanityCmd.Flags().StringP("starts-with", "s", "", "hex prefix of the address")
	vanityCmd.Flags().StringP("ends-with", "e", "", "hex suffix of the address")
	root.AddCommand(vanityCmd)

	root.AddCommand(&cobra.Command{
		Use:   "decrypt LABEL",
		Short: "print the private key of keystore LABEL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, done, err := openWallet()
			if err != nil {
				return err
			}
			defer done()

			pw, err := readPassword("Enter keystore password: ")
			if err != nil {
				return err
			}
			defer pw.Release()

			key, err := w.Decrypt(args[0], pw)
			if err != nil {
				return err
			}
			defer key.Release()

			return writeKey(os.Stdout, key)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "address LABEL",
		Short: "print the address of keystore LABEL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, done, err := openWallet()
			if err != nil {
				return err
			}
			defer done()

			pw, err := readPassword("Enter keystore password: ")
			if err != nil {
				return err
			}
			defer pw.Release()

			addr, err := w.Address(args[0], pw)
			if err != nil {
				return err
			}
			fmt.Println("Address:", addr)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list keystores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, done, err := openWallet()
			if err != nil {
				return err
			}
			defer done()

			keystores, err := w.List()
			if err != nil {
				return err
			}
			for _, k := range keystores {
				addr := k.Address
				switch {
				case k.Missing:
					addr += " (missing)"
				case addr == "":
					addr = "(locked)"
				}
				fmt.Printf("%-24s %s\n", k.Label, addr)
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "remove LABEL",
		Short: "delete keystore LABEL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, done, err := openWallet()
			if err != nil {
				return err
			}
			defer done()

			if err := w.Remove(args[0]); err != nil {
				return err
			}
			fmt.Println("Removed", args[0])
			return nil
		},
	})
}

// writeKey prints key without converting it to a string.
func writeKey(out io.Writer, key *secret.Secret) error {
	if _, err := io.WriteString(out, "Private key: "); err != nil {
		return err
	}
	if _, err := out.Write(key.Reveal()); err != nil {
		return err
	}
	_, err := io.WriteString(out, "\n")
	return err
}
