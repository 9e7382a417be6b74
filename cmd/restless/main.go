// Copyright 2017 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Command line helper for the restless toolkit.

The serve subcommand runs a small book catalog API that shows how the
pieces fit together.
*/
package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/restlesskit/restless"
	"github.com/restlesskit/restless/services/auth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "restless",
		Short: "restless is a command line helper for the restless web toolkit",
	}

	rootCmd.AddCommand(
		serveCmd(),
		secretCmd(),
	)

	rootCmd.Execute()
}

type Author struct {
	UUID string `json:"id" dbprimary:"true" dbdefault:"uuid_generate_v4()" dbtype:"uuid"`
	Name string `json:"name" validate:"required"`
}

func (a *Author) GetID() string {
	return a.UUID
}

type Publisher struct {
	UUID string `json:"id" dbprimary:"true" dbdefault:"uuid_generate_v4()" dbtype:"uuid"`
	Name string `json:"name" validate:"required"`
}

func (p *Publisher) GetID() string {
	return p.UUID
}

type Book struct {
	UUID        string  `json:"id" dbprimary:"true" dbdefault:"uuid_generate_v4()" dbtype:"uuid"`
	Title       string  `json:"title" validate:"required"`
	ISBN        string  `json:"isbn" validate:"required"`
	Price       float64 `json:"price"`
	AuthorID    string  `json:"author_id" dbtype:"uuid"`
	PublisherID string  `json:"publisher_id" dbtype:"uuid"`
}

func (b *Book) GetID() string {
	return b.UUID
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the demo book catalog API",
	}

	cmd.Run = func(cmd *cobra.Command, args []string) {
		restless.Run(func(cfg *viper.Viper, s *restless.Server) error {
			conn := s.GetDBConnection()
			if conn == nil {
				return errors.New("the demo API needs a database, set PGConnectString")
			}

			for _, model := range []restless.Model{&Author{}, &Publisher{}, &Book{}} {
				mc := restless.NewModelController(model, conn)
				if err := s.RegisterService(mc.Resource(nil)); err != nil {
					return err
				}
			}

			users, err := newStaticUsers(cfg)
			if err != nil {
				return err
			}

			return s.RegisterService(auth.NewService(users, conn))
		})
	}

	return cmd
}

func secretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "generate a secret key for the config file",
		Run: func(cmd *cobra.Command, args []string) {
			buf := make([]byte, 32)
			if _, err := io.ReadFull(rand.Reader, buf); err != nil {
				panic(err)
			}
			fmt.Println(hex.EncodeToString(buf))
		},
	}
}

type adminAccount struct {
	Username string `json:"username"`
}

// A single-account user delegate for the demo. The credentials come from
// the AdminUser and AdminPassword config values.
type staticUsers struct {
	username string
	hash     string
}

func newStaticUsers(cfg *viper.Viper) (*staticUsers, error) {
	cfg.SetDefault("AdminUser", "admin")

	password := cfg.GetString("AdminPassword")
	if password == "" {
		return nil, errors.New("AdminPassword must be set")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	return &staticUsers{
		username: cfg.GetString("AdminUser"),
		hash:     hash,
	}, nil
}

func (su *staticUsers) Credentials(identifier string) (interface{}, string, error) {
	if identifier != su.username {
		return nil, "", nil
	}

	return &adminAccount{Username: su.username}, su.hash, nil
}

func (su *staticUsers) PrincipalByID(id string) (interface{}, error) {
	if id != su.username {
		return nil, nil
	}

	return &adminAccount{Username: su.username}, nil
}

func (su *staticUsers) PrincipalID(principal interface{}) string {
	return principal.(*adminAccount).Username
}
