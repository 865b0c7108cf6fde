
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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

//Orchestrator wired with millisecond timings so full runs stay fast
func newTestOrchestrator(gw *mockGateway, approval ApprovalProvider, proceedOnSyncTimeout bool, benchmark bool) *Orchestrator {
	executor := NewFailoverExecutor(gw)
	return &Orchestrator{
		gateway:              gw,
		inventory:            NewReplicaGroupInventory(gw),
		selection:            NewSelectionPolicy(approval),
		mode:                 NewModeTransitionController(gw, "sqlnode2"),
		waiter:               NewSynchronizationWaiter(gw, 5*time.Millisecond),
		executor:             executor,
		auditor:              NewPostFailoverAuditor(gw, executor),
		node:                 "sqlnode2",
		targetNode:           "sqlnode2",
		syncTimeout:          30 * time.Millisecond,
		proceedOnSyncTimeout: proceedOnSyncTimeout,
		benchmark:            benchmark,
	}
}

func seedTwoSecondaries(gw *mockGateway) {
	gw.groups = []GroupInfo{
		{Name: "AG1", PrimaryEndpoint: "sqlnode1", LocalRole: RoleSecondary},
		{Name: "AG2", PrimaryEndpoint: "sqlnode1", LocalRole: RolePrimary},
		{Name: "AG3", PrimaryEndpoint: "sqlnode1", LocalRole: RoleSecondary},
	}
	gw.replicas["AG1"] = []ReplicaInfo{
		testReplica("sqlnode1", RolePrimary, ModeAsynchronous),
		testReplica("sqlnode2", RoleSecondary, ModeAsynchronous),
	}
	gw.replicas["AG2"] = []ReplicaInfo{
		testReplica("sqlnode1", RolePrimary, ModeSynchronous),
		testReplica("sqlnode2", RoleSecondary, ModeSynchronous),
	}
	gw.replicas["AG3"] = []ReplicaInfo{
		testReplica("sqlnode1", RolePrimary, ModeSynchronous),
		testReplica("sqlnode2", RoleSecondary, ModeSynchronous),
	}
	gw.snapshots["AG1"] = [][]ReplicaGroupDatabase{synchronizedSnapshot("db1")}
	gw.snapshots["AG3"] = [][]ReplicaGroupDatabase{synchronizedSnapshot("db2", "db3")}
	gw.health["AG1"] = []ReplicaHealthRecord{{GroupName: "AG1", ReplicaName: "sqlnode2", Role: RolePrimary}}
	gw.health["AG3"] = []ReplicaHealthRecord{{GroupName: "AG3", ReplicaName: "sqlnode2", Role: RolePrimary}}
}

func TestRunFullSuccess(t *testing.T) {
	gw := newMockGateway()
	seedTwoSecondaries(gw)

	orchestrator := newTestOrchestrator(gw, NewListApproval([]string{"AG1", "AG3"}), false, false)
	summary, err := orchestrator.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, RunSucceeded, summary.Status)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Len(t, summary.Results, 2)

	//approval order is processing order
	assert.Equal(t, "AG1", summary.Results[0].GroupName)
	assert.Equal(t, "AG3", summary.Results[1].GroupName)

	for _, result := range summary.Results {
		assert.Equal(t, StateAudited, result.State)
		assert.Equal(t, SyncReady, result.SyncOutcome)
		assert.Equal(t, FailoverSucceeded, result.FailoverOutcome)
		assert.True(t, result.Reverted)
		assert.NotEmpty(t, result.Health)
	}

	//AG1 was asynchronous, the mode must have round tripped, AG3 untouched
	assert.True(t, summary.Results[0].ModeTransitioned)
	assert.False(t, summary.Results[1].ModeTransitioned)
	modeCalls := gw.callsFor("SetReplicaMode")
	assert.Len(t, modeCalls, 4) // AG1 up x2, AG1 down x2
	for _, call := range modeCalls {
		assert.Equal(t, "AG1", call.Group)
	}
}

//The mode round trip law: CurrentMode synchronous right before failover and
//asynchronous again after Reverted, no matter the failover outcome
func TestRunFailedFailoverStillReverts(t *testing.T) {
	gw := newMockGateway()
	seedTwoSecondaries(gw)
	gw.failoverErr["AG1"] = &GatewayCommandError{
		Node: "sqlnode2", Group: "AG1", Command: "failover", Err: errors.New("refused"),
	}

	orchestrator := newTestOrchestrator(gw, NewListApproval([]string{"AG1", "AG3"}), false, false)
	summary, err := orchestrator.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, RunPartialFailure, summary.Status)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	failed := summary.Results[0]
	assert.Equal(t, "AG1", failed.GroupName)
	assert.Equal(t, FailoverFailed, failed.FailoverOutcome)
	assert.Equal(t, StateAudited, failed.State)
	assert.True(t, failed.Reverted, "failed group must still be reverted")

	//the revert happened before the next group was touched
	var sawRevert, sawNextFailover bool
	for _, call := range gw.calls {
		if call.Method == "SetReplicaMode" && call.Group == "AG1" && call.Mode == ModeAsynchronous {
			sawRevert = true
		}
		if call.Method == "InitiateFailover" && call.Group == "AG3" {
			assert.True(t, sawRevert, "AG3 failover issued before AG1 revert")
			sawNextFailover = true
		}
	}
	assert.True(t, sawRevert)
	assert.True(t, sawNextFailover, "the run must continue with the next group")
}

func TestRunEmptyApprovalIsNoop(t *testing.T) {
	gw := newMockGateway()
	seedTwoSecondaries(gw)

	orchestrator := newTestOrchestrator(gw, NewListApproval(nil), false, false)
	summary, err := orchestrator.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, RunNoop, summary.Status)
	assert.Empty(t, summary.Results)
	assert.Empty(t, gw.callsFor("SetReplicaMode"))
	assert.Empty(t, gw.callsFor("InitiateFailover"))
}

func TestRunAbortsWhenNodeUnreachable(t *testing.T) {
	gw := newMockGateway()
	gw.listGroupsErr = &GatewayUnavailableError{Node: "sqlnode2", Err: errors.New("no route to host")}

	orchestrator := newTestOrchestrator(gw, NewListApproval([]string{"AG1"}), false, false)
	summary, err := orchestrator.Run(context.Background())

	assert.Error(t, err)
	assert.Equal(t, RunAborted, summary.Status)
	assert.Empty(t, summary.Results)
}

//Synchronization timeout is a decision point: with the default policy the
//group is skipped, with proceedOnSyncTimeout the failover happens anyway
func TestRunSyncTimeoutPolicy(t *testing.T) {
	seed := func() *mockGateway {
		gw := newMockGateway()
		gw.groups = []GroupInfo{{Name: "AG1", PrimaryEndpoint: "sqlnode1", LocalRole: RoleSecondary}}
		gw.replicas["AG1"] = []ReplicaInfo{
			testReplica("sqlnode1", RolePrimary, ModeSynchronous),
			testReplica("sqlnode2", RoleSecondary, ModeSynchronous),
		}
		gw.snapshots["AG1"] = [][]ReplicaGroupDatabase{synchronizingSnapshot("db1")}
		return gw
	}

	t.Run("skip by default", func(t *testing.T) {
		gw := seed()
		orchestrator := newTestOrchestrator(gw, NewListApproval([]string{"AG1"}), false, false)
		summary, err := orchestrator.Run(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, RunPartialFailure, summary.Status)
		assert.Equal(t, SyncTimedOut, summary.Results[0].SyncOutcome)
		assert.Equal(t, FailoverSkipped, summary.Results[0].FailoverOutcome)
		assert.Empty(t, gw.callsFor("InitiateFailover"))
		assert.Equal(t, StateAudited, summary.Results[0].State)
	})

	t.Run("proceed when configured", func(t *testing.T) {
		gw := seed()
		orchestrator := newTestOrchestrator(gw, NewListApproval([]string{"AG1"}), true, false)
		summary, err := orchestrator.Run(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, RunSucceeded, summary.Status)
		assert.Equal(t, SyncTimedOut, summary.Results[0].SyncOutcome)
		assert.Equal(t, FailoverSucceeded, summary.Results[0].FailoverOutcome)
		assert.Len(t, gw.callsFor("InitiateFailover"), 1)
	})
}

func TestRunBenchmarkFailsBack(t *testing.T) {
	gw := newMockGateway()
	seedTwoSecondaries(gw)

	orchestrator := newTestOrchestrator(gw, NewListApproval([]string{"AG1"}), false, true)
	summary, err := orchestrator.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, RunSucceeded, summary.Status)

	result := summary.Results[0]
	assert.NotNil(t, result.Failback)
	assert.Equal(t, FailoverSucceeded, result.Failback.Outcome)
	assert.Equal(t, "sqlnode1", result.Failback.TargetEndpoint, "failback targets the original primary")

	//failover to the secondary then failback to the original primary
	failovers := gw.callsFor("InitiateFailover")
	assert.Len(t, failovers, 2)
	assert.Equal(t, "sqlnode2", failovers[0].Node)
	assert.Equal(t, "sqlnode1", failovers[1].Node)
}

//Mode ensure rejected by the engine: the group is contained, audit still runs,
//and the run moves on
func TestRunModeEnsureFailureIsContained(t *testing.T) {
	gw := newMockGateway()
	seedTwoSecondaries(gw)
	gw.setModeErr["AG1/sqlnode1"] = errors.New("replica unreachable")

	orchestrator := newTestOrchestrator(gw, NewListApproval([]string{"AG1", "AG3"}), false, false)
	summary, err := orchestrator.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, RunPartialFailure, summary.Status)

	failed := summary.Results[0]
	assert.Equal(t, FailoverSkipped, failed.FailoverOutcome)
	assert.Equal(t, SyncSkipped, failed.SyncOutcome)
	assert.Equal(t, StateAudited, failed.State)
	assert.Error(t, failed.Err)

	//AG3 still went through
	assert.Equal(t, FailoverSucceeded, summary.Results[1].FailoverOutcome)
}
