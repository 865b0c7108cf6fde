/*
 * Copyright (c) Marco Tusa 2021 - present
 *                     GNU GENERAL PUBLIC LICENSE
 *                        Version 3, 29 June 2007
 *
 *  Copyright (C) 2007 Free Software Foundation, Inc. <https://fsf.org/>
 *  Everyone is permitted to copy and distribute verbatim copies
 *  of this license document, but changing it is not allowed.
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package DataObjects

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	global "ag_failover_handler/internal/Global"
	SQLAg "ag_failover_handler/internal/Sql/Ag"
)

/*
ClusterAdminGateway is the only surface through which the orchestration core
touches the engine. Every mutation of cluster state (replica mode, failover)
goes through here, the core itself never writes anything.
*/
type ClusterAdminGateway interface {
	QueryServerProperty(node string, property string) (string, error)
	ListGroups(node string) ([]GroupInfo, error)
	ListReplicas(node string, group string) ([]ReplicaInfo, error)
	ListGroupDatabases(node string, group string) ([]ReplicaGroupDatabase, error)
	SetReplicaMode(node string, group string, replica string, mode CommitMode) error
	InitiateFailover(node string, group string) error
	AuditHealth(node string, group string) ([]ReplicaHealthRecord, error)
}

//Group metadata as returned by the engine before the replicas are attached
type GroupInfo struct {
	Name            string
	PrimaryEndpoint string
	LocalRole       ReplicaRole
}

/*===============================================================
Error taxonomy
*/

//GatewayUnavailableError means the node could not be reached at all.
//This is fatal to the whole run, nothing can be processed without inventory.
type GatewayUnavailableError struct {
	Node string
	Err  error
}

func (e *GatewayUnavailableError) Error() string {
	return fmt.Sprintf("gateway unavailable for node %s: %v", e.Node, e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error {
	return e.Err
}

//GatewayCommandError means one administrative command was rejected by the
//engine. It is scoped to the group being processed, the run continues with
//the next group.
type GatewayCommandError struct {
	Node    string
	Group   string
	Command string
	Err     error
}

func (e *GatewayCommandError) Error() string {
	return fmt.Sprintf("gateway command %s rejected on node %s group %s: %v", e.Command, e.Node, e.Group, e.Err)
}

func (e *GatewayCommandError) Unwrap() error {
	return e.Err
}

func IsGatewayUnavailable(err error) bool {
	var target *GatewayUnavailableError
	return errors.As(err, &target)
}

/*===============================================================
SQL Server implementation
*/

type SQLGatewayImpl struct {
	User             string
	Password         string
	Port             int
	AppName          string
	ConnectTimeout   time.Duration
	TrustCertificate bool

	connections map[string]*sql.DB
}

func NewSQLGateway(config global.Configuration) *SQLGatewayImpl {
	return &SQLGatewayImpl{
		User:             config.Mssql.User,
		Password:         config.Mssql.Password,
		Port:             config.Mssql.Port,
		AppName:          config.Mssql.AppName,
		ConnectTimeout:   time.Duration(config.Mssql.ConnectTimeout) * time.Second,
		TrustCertificate: config.Mssql.TrustCertificate,
		connections:      make(map[string]*sql.DB),
	}
}

//Open and ping the connection for a node, cached per node for the run
func (gw *SQLGatewayImpl) getConnection(node string) (*sql.DB, error) {
	if db, exists := gw.connections[node]; exists {
		return db, nil
	}

	query := url.Values{}
	query.Add("app name", gw.AppName)
	query.Add("connection timeout", fmt.Sprintf("%d", int(gw.ConnectTimeout.Seconds())))
	if gw.TrustCertificate {
		query.Add("trustservercertificate", "true")
	}

	dsn := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(gw.User, gw.Password),
		Host:     fmt.Sprintf("%s:%d", node, gw.Port),
		RawQuery: query.Encode(),
	}

	db, err := sql.Open("sqlserver", dsn.String())
	if err != nil {
		return nil, &GatewayUnavailableError{Node: node, Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), gw.ConnectTimeout)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &GatewayUnavailableError{Node: node, Err: err}
	}

	gw.connections[node] = db
	if log.GetLevel() == log.DebugLevel {
		log.Debug("Connection open for node ", node)
	}
	return db, nil
}

func (gw *SQLGatewayImpl) CloseConnections() {
	for node, db := range gw.connections {
		if err := db.Close(); err != nil {
			log.Warning("Error closing connection for node ", node, " ", err.Error())
		}
		delete(gw.connections, node)
	}
}

func (gw *SQLGatewayImpl) QueryServerProperty(node string, property string) (string, error) {
	db, err := gw.getConnection(node)
	if err != nil {
		return "", err
	}

	var value sql.NullString
	if err = db.QueryRow(SQLAg.Dml_get_server_property, property).Scan(&value); err != nil {
		return "", &GatewayCommandError{Node: node, Command: "SERVERPROPERTY", Err: err}
	}
	return value.String, nil
}

func (gw *SQLGatewayImpl) ListGroups(node string) ([]GroupInfo, error) {
	db, err := gw.getConnection(node)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(SQLAg.Dml_get_groups)
	if err != nil {
		return nil, &GatewayCommandError{Node: node, Command: "list groups", Err: err}
	}
	defer rows.Close()

	var groups []GroupInfo
	for rows.Next() {
		var name, primary, role string
		if err = rows.Scan(&name, &primary, &role); err != nil {
			return nil, &GatewayCommandError{Node: node, Command: "list groups", Err: err}
		}
		groups = append(groups, GroupInfo{
			Name:            name,
			PrimaryEndpoint: primary,
			LocalRole:       ParseReplicaRole(role),
		})
	}
	if err = rows.Err(); err != nil {
		return nil, &GatewayCommandError{Node: node, Command: "list groups", Err: err}
	}
	return groups, nil
}

func (gw *SQLGatewayImpl) ListReplicas(node string, group string) ([]ReplicaInfo, error) {
	db, err := gw.getConnection(node)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(SQLAg.Dml_get_replicas, group)
	if err != nil {
		return nil, &GatewayCommandError{Node: node, Group: group, Command: "list replicas", Err: err}
	}
	defer rows.Close()

	var replicas []ReplicaInfo
	for rows.Next() {
		var name, endpoint, mode, role string
		if err = rows.Scan(&name, &endpoint, &mode, &role); err != nil {
			return nil, &GatewayCommandError{Node: node, Group: group, Command: "list replicas", Err: err}
		}
		replicas = append(replicas, ReplicaInfo{
			Name:       name,
			Endpoint:   endpoint,
			Role:       ParseReplicaRole(role),
			CommitMode: ParseCommitMode(mode),
		})
	}
	if err = rows.Err(); err != nil {
		return nil, &GatewayCommandError{Node: node, Group: group, Command: "list replicas", Err: err}
	}
	return replicas, nil
}

func (gw *SQLGatewayImpl) ListGroupDatabases(node string, group string) ([]ReplicaGroupDatabase, error) {
	db, err := gw.getConnection(node)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(SQLAg.Dml_get_group_databases, group)
	if err != nil {
		return nil, &GatewayCommandError{Node: node, Group: group, Command: "list group databases", Err: err}
	}
	defer rows.Close()

	var databases []ReplicaGroupDatabase
	for rows.Next() {
		var name, state string
		if err = rows.Scan(&name, &state); err != nil {
			return nil, &GatewayCommandError{Node: node, Group: group, Command: "list group databases", Err: err}
		}
		databases = append(databases, ReplicaGroupDatabase{
			DatabaseName: name,
			SyncState:    ParseSyncState(state),
		})
	}
	if err = rows.Err(); err != nil {
		return nil, &GatewayCommandError{Node: node, Group: group, Command: "list group databases", Err: err}
	}
	return databases, nil
}

func (gw *SQLGatewayImpl) SetReplicaMode(node string, group string, replica string, mode CommitMode) error {
	db, err := gw.getConnection(node)
	if err != nil {
		return err
	}

	ddl := fmt.Sprintf(SQLAg.Ddl_set_replica_mode, quoteName(group), escapeString(replica), mode.String())
	if _, err = db.Exec(ddl); err != nil {
		return &GatewayCommandError{Node: node, Group: group, Command: "set replica mode", Err: err}
	}
	return nil
}

func (gw *SQLGatewayImpl) InitiateFailover(node string, group string) error {
	db, err := gw.getConnection(node)
	if err != nil {
		return err
	}

	ddl := fmt.Sprintf(SQLAg.Ddl_failover, quoteName(group))
	if _, err = db.Exec(ddl); err != nil {
		return &GatewayCommandError{Node: node, Group: group, Command: "failover", Err: err}
	}
	return nil
}

func (gw *SQLGatewayImpl) AuditHealth(node string, group string) ([]ReplicaHealthRecord, error) {
	db, err := gw.getConnection(node)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(SQLAg.Dml_get_health, group)
	if err != nil {
		return nil, &GatewayCommandError{Node: node, Group: group, Command: "audit health", Err: err}
	}
	defer rows.Close()

	var records []ReplicaHealthRecord
	for rows.Next() {
		var groupName, replica, role, failoverMode, availabilityMode, connState string
		if err = rows.Scan(&groupName, &replica, &role, &failoverMode, &availabilityMode, &connState); err != nil {
			return nil, &GatewayCommandError{Node: node, Group: group, Command: "audit health", Err: err}
		}
		records = append(records, ReplicaHealthRecord{
			GroupName:        groupName,
			ReplicaName:      replica,
			Role:             ParseReplicaRole(role),
			FailoverMode:     failoverMode,
			AvailabilityMode: availabilityMode,
			ConnectionState:  connState,
		})
	}
	if err = rows.Err(); err != nil {
		return nil, &GatewayCommandError{Node: node, Group: group, Command: "audit health", Err: err}
	}
	return records, nil
}

//QUOTENAME equivalent for identifiers injected in DDL, brackets cannot be
//parameterized in ALTER AVAILABILITY GROUP
func quoteName(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func escapeString(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
