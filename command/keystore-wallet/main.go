package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bitmark-inc/keystore-wallet"
	"github.com/bitmark-inc/keystore-wallet/agent"
	"github.com/bitmark-inc/keystore-wallet/discover"
	"github.com/bitmark-inc/keystore-wallet/ptyexec"
	"github.com/bitmark-inc/keystore-wallet/terminal"
)

const envPrefix = "KEYSTORE_WALLET"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "keystore-wallet",
	Short:         "keystore-wallet manages Foundry keystores",
	Long:          `keystore-wallet manages Foundry keystores through cast without passing secrets on the command line`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	viper.SetConfigType("hcl")
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		// the default config file is optional
		if !errors.Is(err, fs.ErrNotExist) || rootCmd.PersistentFlags().Changed("conf") {
			fmt.Println("Can't read config:", err)
			os.Exit(1)
		}
	}

	level, err := log.ParseLevel(viper.GetString("loglevel"))
	if err != nil {
		fmt.Println("Invalid log level:", err)
		os.Exit(1)
	}
	log.SetLevel(level)

	datadir := viper.GetString("datadir")
	switch datadir {
	case "", ".":
		c, err := filepath.Abs(filepath.Clean(cfgFile))
		if nil != err {
			log.Fatal(err)
		}
		datadir, _ = filepath.Split(c)

	default:
	}

	viper.Set("datadir", datadir)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "conf", "C", "wallet.conf", "Path to config file")
	flags.StringP("datadir", "d", "", "Directory for the wallet data")
	flags.StringP("walletdb", "W", "wallet.dat", "Filename of wallet db")
	flags.String("cast", "", "Path to the cast binary")
	flags.StringP("keystoredir", "k", "", "Directory holding the keystores")
	flags.Duration("timeout", 30*time.Second, "Time limit for each cast invocation")
	flags.String("loglevel", "warn", "Log level")

	for _, name := range []string{"datadir", "walletdb", "cast", "keystoredir", "timeout", "loglevel"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}

	addKeystoreCommands(rootCmd)
}

// openWallet wires the wallet from the configuration. done releases the
// index database.
func openWallet() (w *wallet.Wallet, registry *ptyexec.Registry, done func(), err error) {
	castPath, err := discover.CastBinary(viper.GetString("cast"))
	if err != nil {
		return nil, nil, nil, err
	}

	keystoreDir, err := discover.KeystoreDir(viper.GetString("keystoredir"))
	if err != nil {
		return nil, nil, nil, err
	}
	if err := os.MkdirAll(keystoreDir, 0700); err != nil {
		return nil, nil, nil, err
	}

	dataFile := filepath.Join(viper.GetString("datadir"), viper.GetString("walletdb"))
	store, err := wallet.NewBoltKeystoreStore(dataFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open wallet db %s: %w", dataFile, err)
	}

	registry = ptyexec.NewRegistry()
	executor := ptyexec.New()
	executor.Registry = registry
	executor.Env = terminal.Environ(passwordEnv)

	log.WithField("cast", castPath).WithField("keystoredir", keystoreDir).Debug("wallet opened")
	a := agent.NewCastAgent(castPath, keystoreDir, viper.GetDuration("timeout"), executor)
	return wallet.New(a, store), registry, store.Close, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
