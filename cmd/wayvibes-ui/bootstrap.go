package main

import (
	"errors"

	"github.com/spf13/viper"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/app"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/catalog"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/config"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/history"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/importer"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/player"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/settings"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/store"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/validator"
)

// env holds everything a command needs, built from the loaded config.
type env struct {
	cfg       *config.Config
	store     *store.Store
	importer  *importer.Importer
	validator *validator.Validator
	player    *player.Controller
	svc       *app.Service
	catalog   *catalog.Catalog
	history   *history.Log
}

// loadConfig loads the config through the global viper instance so bound
// flags win over the file and environment.
func loadConfig() (*config.Config, error) {
	return config.LoadWith(viper.GetViper())
}

// bootstrap loads config, starts logging and opens the stores.
func bootstrap() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logCfg := cfg.LogConfig()
	if getVerbose() {
		logCfg.ConsoleLevel = "debug"
	}
	if err := logging.Init(logCfg); err != nil {
		return nil, err
	}
	return openEnv(cfg)
}

// openEnv wires the components for cfg. The catalog and history are
// optional: when either cannot be opened the command carries on without it.
func openEnv(cfg *config.Config) (*env, error) {
	log := logging.Get("cli")

	opts, err := cfg.ArchiveOptions()
	if err != nil {
		return nil, err
	}

	st := store.New(cfg.PacksDir)
	st.UseTrash = cfg.Delete.UseTrash

	prefs, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		return nil, err
	}

	v := validator.New(cfg.Validator.Binary)
	v.Timeout = cfg.Validator.Timeout

	e := &env{
		cfg:       cfg,
		store:     st,
		validator: v,
		player:    player.New(cfg.Player.Binary),
	}

	if cfg.Catalog.Enabled {
		if c, err := catalog.Open(cfg.Catalog.Path); err != nil {
			log.Warn("catalog unavailable", "path", cfg.Catalog.Path, "error", err)
		} else {
			e.catalog = c
		}
	}
	if cfg.History.Enabled {
		if h, err := history.New(cfg.History.Path); err != nil {
			log.Warn("history unavailable", "path", cfg.History.Path, "error", err)
		} else {
			e.history = h
		}
	}

	e.importer = &importer.Importer{
		Store:     st,
		Validator: v,
		Archive:   opts,
		Catalog:   e.catalog,
		History:   e.history,
	}
	e.svc = &app.Service{
		Store:    st,
		Importer: e.importer,
		Prefs:    prefs,
		Player:   e.player,
		Catalog:  e.catalog,
		History:  e.history,
	}
	return e, nil
}

// Close releases the catalog and flushes the log file.
func (e *env) Close() error {
	var errs []error
	if e.catalog != nil {
		errs = append(errs, e.catalog.Close())
	}
	errs = append(errs, logging.Close())
	return errors.Join(errs...)
}
