// Package cmd is the pggate command line.
package cmd

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/leftmike/pggate/config"
	"github.com/leftmike/pggate/docdb"
	"github.com/leftmike/pggate/session"
)

var (
	pggateCmd = &cobra.Command{
		Use:   "pggate",
		Short: "A relational statement bridge over a document store",
		Long: "Pggate binds values and targets to the columns of tables kept in a document " +
			"store, and reads and writes their rows.",
		PersistentPreRunE: pggatePreRun,
		PersistentPostRun: pggatePostRun,
		SilenceUsage:      true,
	}

	configFile = "pggate.hcl"
	noConfig   = false

	cfg       *config.Config
	logWriter io.WriteCloser
	st        *docdb.Store
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableLevelTruncation: true,
	})

	fs := pggateCmd.PersistentFlags()
	config.AddFlags(fs)
	fs.StringVar(&configFile, "config-file", configFile, "`file` to load config from")
	fs.BoolVar(&noConfig, "no-config", noConfig, "don't load config file")
}

func Execute() error {
	err := pggateCmd.Execute()
	closeStore()
	return err
}

func closeStore() {
	if st != nil {
		err := st.Close()
		if err != nil {
			log.WithField("error", err).Error("pggate: close store")
		}
		st = nil
	}
}

func pggatePreRun(cmd *cobra.Command, args []string) error {
	file := configFile
	if noConfig {
		file = ""
	} else if _, err := os.Stat(file); os.IsNotExist(err) && !cmd.Flags().Changed("config-file") {
		file = ""
	}

	var err error
	cfg, err = config.Load(file, cmd.Flags())
	if err != nil {
		return fmt.Errorf("pggate: %s", err)
	}

	if !cfg.LogStderr && cfg.LogFile != "" {
		logWriter, err = os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			logWriter = nil
			return fmt.Errorf("pggate: %s", err)
		}
		log.SetOutput(logWriter)
	}

	ll, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("pggate: %s", err)
	}
	log.SetLevel(ll)

	log.WithFields(log.Fields{
		"pid":    os.Getpid(),
		"config": file,
	}).Info("pggate starting")
	return nil
}

func pggatePostRun(cmd *cobra.Command, args []string) {
	closeStore()

	log.WithField("pid", os.Getpid()).Info("pggate done")

	if logWriter != nil {
		logWriter.Close()
	}
}

func newSession() (*session.Session, error) {
	var err error
	st, err = docdb.Open(cfg.Store, cfg.DataDir, log.StandardLogger())
	if err != nil {
		return nil, fmt.Errorf("pggate: %s", err)
	}
	return session.New(st, cfg), nil
}
