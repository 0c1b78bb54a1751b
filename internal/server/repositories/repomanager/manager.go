// Package repomanager vends repositories bound to a *sql.DB or *sql.Tx and
// applies schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/quickchat/internal/dbx"
	"github.com/dmitrijs2005/quickchat/internal/server/repositories/conversations"
	"github.com/dmitrijs2005/quickchat/internal/server/repositories/messages"
	"github.com/dmitrijs2005/quickchat/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/quickchat/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Conversations(db dbx.DBTX) conversations.Repository
	Messages(db dbx.DBTX) messages.Repository
}
