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
	"errors"
	"fmt"
)

//One recorded administrative call, used by the tests to assert ordering
type gatewayCall struct {
	Method  string
	Node    string
	Group   string
	Replica string
	Mode    CommitMode
}

/*
mockGateway is a scripted ClusterAdminGateway. Database state snapshots are
consumed one per poll, the last one repeats forever, so a test can model a
group that synchronizes on the Nth check or never does.
*/
type mockGateway struct {
	groups    []GroupInfo
	replicas  map[string][]ReplicaInfo
	snapshots map[string][][]ReplicaGroupDatabase
	health    map[string][]ReplicaHealthRecord

	listGroupsErr error
	setModeErr    map[string]error
	failoverErr   map[string]error
	auditErr      error

	calls     []gatewayCall
	pollCount map[string]int
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		replicas:    make(map[string][]ReplicaInfo),
		snapshots:   make(map[string][][]ReplicaGroupDatabase),
		health:      make(map[string][]ReplicaHealthRecord),
		setModeErr:  make(map[string]error),
		failoverErr: make(map[string]error),
		pollCount:   make(map[string]int),
	}
}

func (mock *mockGateway) record(call gatewayCall) {
	mock.calls = append(mock.calls, call)
}

func (mock *mockGateway) callsFor(method string) []gatewayCall {
	var out []gatewayCall
	for _, call := range mock.calls {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

func (mock *mockGateway) QueryServerProperty(node string, property string) (string, error) {
	mock.record(gatewayCall{Method: "QueryServerProperty", Node: node})
	return "mock", nil
}

func (mock *mockGateway) ListGroups(node string) ([]GroupInfo, error) {
	mock.record(gatewayCall{Method: "ListGroups", Node: node})
	if mock.listGroupsErr != nil {
		return nil, mock.listGroupsErr
	}
	return mock.groups, nil
}

func (mock *mockGateway) ListReplicas(node string, group string) ([]ReplicaInfo, error) {
	mock.record(gatewayCall{Method: "ListReplicas", Node: node, Group: group})
	replicas, exists := mock.replicas[group]
	if !exists {
		return nil, &GatewayCommandError{Node: node, Group: group, Command: "list replicas", Err: errors.New("unknown group")}
	}
	return replicas, nil
}

func (mock *mockGateway) ListGroupDatabases(node string, group string) ([]ReplicaGroupDatabase, error) {
	mock.record(gatewayCall{Method: "ListGroupDatabases", Node: node, Group: group})
	snapshots := mock.snapshots[group]
	if len(snapshots) == 0 {
		return nil, nil
	}
	idx := mock.pollCount[group]
	if idx >= len(snapshots) {
		idx = len(snapshots) - 1
	}
	mock.pollCount[group]++
	return snapshots[idx], nil
}

func (mock *mockGateway) SetReplicaMode(node string, group string, replica string, mode CommitMode) error {
	mock.record(gatewayCall{Method: "SetReplicaMode", Node: node, Group: group, Replica: replica, Mode: mode})
	if err, exists := mock.setModeErr[group+"/"+replica]; exists {
		return err
	}
	return nil
}

func (mock *mockGateway) InitiateFailover(node string, group string) error {
	mock.record(gatewayCall{Method: "InitiateFailover", Node: node, Group: group})
	if err, exists := mock.failoverErr[group]; exists {
		return err
	}
	return nil
}

func (mock *mockGateway) AuditHealth(node string, group string) ([]ReplicaHealthRecord, error) {
	mock.record(gatewayCall{Method: "AuditHealth", Node: node, Group: group})
	if mock.auditErr != nil {
		return nil, mock.auditErr
	}
	return mock.health[group], nil
}

/*===============================================================
Fixture factories
*/

func testReplica(name string, role ReplicaRole, mode CommitMode) ReplicaInfo {
	return ReplicaInfo{
		Name:       name,
		Endpoint:   fmt.Sprintf("tcp://%s:5022", name),
		Role:       role,
		CommitMode: mode,
	}
}

func testGroupFactory(name string, localRole ReplicaRole, mode CommitMode) ReplicaGroup {
	return ReplicaGroup{
		Name:            name,
		PrimaryEndpoint: "sqlnode1",
		LocalRole:       localRole,
		OriginalMode:    mode,
		CurrentMode:     mode,
		Replicas: []ReplicaInfo{
			testReplica("sqlnode1", RolePrimary, mode),
			testReplica("sqlnode2", RoleSecondary, mode),
		},
	}
}

func synchronizedSnapshot(names ...string) []ReplicaGroupDatabase {
	var databases []ReplicaGroupDatabase
	for _, name := range names {
		databases = append(databases, ReplicaGroupDatabase{DatabaseName: name, SyncState: SyncSynchronized})
	}
	return databases
}

func synchronizingSnapshot(names ...string) []ReplicaGroupDatabase {
	var databases []ReplicaGroupDatabase
	for _, name := range names {
		databases = append(databases, ReplicaGroupDatabase{DatabaseName: name, SyncState: SyncSynchronizing})
	}
	return databases
}
