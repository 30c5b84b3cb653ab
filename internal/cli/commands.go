// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/jeranaias/confserve/internal/config"
	"github.com/jeranaias/confserve/internal/store"
)

// =============================================================================
// GET
// =============================================================================

func getCommand(st *appState) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "print the value of one setting",
		ArgsUsage: "KEY",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Value:   "string",
				Usage:   "parse the value as string, int, float or bool",
			},
			&cli.BoolFlag{Name: "json", Usage: "print a JSON envelope"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return &UsageError{Usage: "confserve get KEY", Msg: "expected exactly one key"}
			}
			key := c.Args().First()

			s, err := st.openStore()
			if err != nil {
				return newCommandError("get", "could not load settings", err)
			}

			kind := c.String("type")
			value, err := typedValue(s, key, kind)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return NewJSONResponse("get", GetData{Key: key, Type: kind, Value: value}).Print(c.App.Writer)
			}
			_, err = fmt.Fprintln(c.App.Writer, value)
			return err
		},
	}
}

func typedValue(s *store.Store, key, kind string) (any, error) {
	switch kind {
	case "string":
		return s.String(key)
	case "int":
		return s.Int(key)
	case "float":
		return s.Float64(key)
	case "bool":
		return s.Bool(key)
	default:
		return nil, &UsageError{
			Usage: "confserve get --type string|int|float|bool KEY",
			Msg:   fmt.Sprintf("unknown type %q", kind),
		}
	}
}

// =============================================================================
// SET
// =============================================================================

func setCommand(st *appState) *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "change one setting and save the file",
		ArgsUsage: "KEY VALUE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "comment", Usage: "comment written above the key"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return &UsageError{Usage: "confserve set KEY VALUE", Msg: "expected a key and a value"}
			}
			key, value := c.Args().Get(0), c.Args().Get(1)

			s, err := st.openStore()
			if err != nil {
				return newCommandError("set", "could not load settings", err)
			}
			if err := s.CheckSetting(key, value); err != nil {
				return newCommandError("set", "refusing to write a file that could not be read back", err)
			}

			if c.IsSet("comment") {
				s.SetValueInfo(key, value, c.String("comment"))
			} else {
				s.SetValue(key, value)
			}
			if err := s.Save(); err != nil {
				return newCommandError("set", "could not save settings", err)
			}

			st.logger.Info("setting changed", "path", s.Path(), "key", key)
			return nil
		},
	}
}

// =============================================================================
// LIST
// =============================================================================

func listCommand(st *appState) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "print every setting in file order",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print a JSON envelope"},
		},
		Action: func(c *cli.Context) error {
			s, err := st.openStore()
			if err != nil {
				return newCommandError("list", "could not load settings", err)
			}

			settings := s.Settings()
			if c.Bool("json") {
				data := ListData{File: s.Path(), Header: s.Header(), Settings: make([]SettingData, 0, len(settings))}
				for _, set := range settings {
					entry := SettingData{Key: set.Key, Value: set.Value}
					if set.HasComment {
						comment := set.Comment
						entry.Comment = &comment
					}
					data.Settings = append(data.Settings, entry)
				}
				return NewJSONResponse("list", data).Print(c.App.Writer)
			}

			for _, set := range settings {
				if _, err := fmt.Fprintf(c.App.Writer, "%s: %s\n", set.Key, set.Value); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// =============================================================================
// INIT
// =============================================================================

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "write a default host config file",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("config")
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}

			if _, err := os.Stat(path); err == nil && !c.Bool("force") {
				return newCommandError("init", fmt.Sprintf("%s already exists, use --force to overwrite", path), nil)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return newCommandError("init", "could not check existing file", err)
			}

			if err := config.SaveTOML(config.Default(), path); err != nil {
				return newCommandError("init", "could not write config", err)
			}
			_, err := fmt.Fprintln(c.App.Writer, "wrote", path)
			return err
		},
	}
}
