package main

import (
	"fmt"
	"os"
	"time"

	"github.com/akamensky/argparse"
	"github.com/caddyserver/certmagic"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
	"github.com/hireloop/hireloop/server"
	"github.com/hireloop/hireloop/server/authdb"
	"github.com/hireloop/hireloop/server/config"
	"github.com/hireloop/hireloop/server/email"
)

func main() {
	parser := argparse.NewParser("hireloop", "Recruiting CRM")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Configuration file", Default: "hireloop.json"})
	port := parser.Int("p", "port", &argparse.Options{Help: "Override HTTP listen port", Default: 0})
	httpsDomain := parser.String("", "https-domain", &argparse.Options{Help: "Serve HTTPS for this domain, with automatic certificates", Default: ""})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}

	authDB, err := authdb.NewAuthDB(logger, cfg.DBPath, authdb.Options{
		SessionSecret: cfg.SessionSecret,
		Production:    cfg.Production,
		AllowedEmails: cfg.AllowedEmails,
		CodeTTL:       time.Duration(cfg.CodeTTLMinutes) * time.Minute,
		SessionTTL:    time.Duration(cfg.SessionTTLDays) * 24 * time.Hour,
	})
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	var sender email.Sender
	if cfg.SMTP.Host != "" {
		sender, err = email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
	} else {
		if cfg.Production {
			logger.Errorf("No SMTP host configured. An email channel is required in production")
			os.Exit(1)
		}
		logger.Warnf("No SMTP host configured. Login codes will be written to the log")
		sender = email.NewLogSender(logger)
	}

	srv := server.NewServer(logger, cfg, authDB, sender)
	defer srv.Shutdown()

	daemon.SdNotify(false, daemon.SdNotifyReady)

	if *httpsDomain != "" {
		logger.Infof("Serving HTTPS for %v", *httpsDomain)
		err = certmagic.HTTPS([]string{*httpsDomain}, srv.SetupHTTP())
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil {
		logger.Errorf("Server exited: %v", err)
		os.Exit(1)
	}
}
