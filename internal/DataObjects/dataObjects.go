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
	"strings"
	"time"
)

/*
Closed enumerations for role, commit mode, synchronization state and the
per group state machine. The engine talks in free form strings (role_desc,
availability_mode_desc and so on), everything is converted to these types
at the gateway boundary and never compared as strings afterwards.
*/

type ReplicaRole int

const (
	RoleUnknown ReplicaRole = iota
	RolePrimary
	RoleSecondary
	RoleResolving
)

func (r ReplicaRole) String() string {
	switch r {
	case RolePrimary:
		return "PRIMARY"
	case RoleSecondary:
		return "SECONDARY"
	case RoleResolving:
		return "RESOLVING"
	case RoleUnknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}

func ParseReplicaRole(roleDesc string) ReplicaRole {
	switch strings.ToUpper(strings.TrimSpace(roleDesc)) {
	case "PRIMARY":
		return RolePrimary
	case "SECONDARY":
		return RoleSecondary
	case "RESOLVING":
		return RoleResolving
	default:
		return RoleUnknown
	}
}

type CommitMode int

const (
	ModeAsynchronous CommitMode = iota
	ModeSynchronous
)

func (m CommitMode) String() string {
	switch m {
	case ModeSynchronous:
		return "SYNCHRONOUS_COMMIT"
	case ModeAsynchronous:
		return "ASYNCHRONOUS_COMMIT"
	default:
		return "ASYNCHRONOUS_COMMIT"
	}
}

func ParseCommitMode(modeDesc string) CommitMode {
	switch strings.ToUpper(strings.TrimSpace(modeDesc)) {
	case "SYNCHRONOUS_COMMIT":
		return ModeSynchronous
	default:
		return ModeAsynchronous
	}
}

type SyncState int

const (
	SyncNotSynchronizing SyncState = iota
	SyncSynchronizing
	SyncSynchronized
	SyncReverting
	SyncInitializing
)

func (s SyncState) String() string {
	switch s {
	case SyncNotSynchronizing:
		return "NOT SYNCHRONIZING"
	case SyncSynchronizing:
		return "SYNCHRONIZING"
	case SyncSynchronized:
		return "SYNCHRONIZED"
	case SyncReverting:
		return "REVERTING"
	case SyncInitializing:
		return "INITIALIZING"
	default:
		return "NOT SYNCHRONIZING"
	}
}

func ParseSyncState(stateDesc string) SyncState {
	switch strings.ToUpper(strings.TrimSpace(stateDesc)) {
	case "SYNCHRONIZED":
		return SyncSynchronized
	case "SYNCHRONIZING":
		return SyncSynchronizing
	case "REVERTING":
		return SyncReverting
	case "INITIALIZING":
		return SyncInitializing
	default:
		return SyncNotSynchronizing
	}
}

//Outcome of the synchronization wait for one group
type SyncOutcome int

const (
	SyncSkipped SyncOutcome = iota
	SyncReady
	SyncTimedOut
)

func (s SyncOutcome) String() string {
	switch s {
	case SyncReady:
		return "Ready"
	case SyncTimedOut:
		return "TimedOut"
	case SyncSkipped:
		return "Skipped"
	default:
		return "Skipped"
	}
}

//Outcome of the failover command for one group
type FailoverOutcome int

const (
	FailoverSkipped FailoverOutcome = iota
	FailoverSucceeded
	FailoverFailed
)

func (f FailoverOutcome) String() string {
	switch f {
	case FailoverSucceeded:
		return "Succeeded"
	case FailoverFailed:
		return "Failed"
	case FailoverSkipped:
		return "Skipped"
	default:
		return "Skipped"
	}
}

/*
Per group state machine inside one run:
Discovered -> Selected -> ModeEnsured -> SyncWaiting -> {SyncReady | SyncTimedOut}
 -> FailingOver -> {FailedOver | FailoverFailed} -> Reverting -> Reverted -> Audited
Every selected group terminates in Audited no matter which branch it took,
reversion and audit are never skipped.
*/
type GroupState int

const (
	StateDiscovered GroupState = iota
	StateSelected
	StateModeEnsured
	StateSyncWaiting
	StateSyncReady
	StateSyncTimedOut
	StateFailingOver
	StateFailedOver
	StateFailoverFailed
	StateReverting
	StateReverted
	StateAudited
)

func (s GroupState) String() string {
	switch s {
	case StateDiscovered:
		return "Discovered"
	case StateSelected:
		return "Selected"
	case StateModeEnsured:
		return "ModeEnsured"
	case StateSyncWaiting:
		return "SyncWaiting"
	case StateSyncReady:
		return "SyncReady"
	case StateSyncTimedOut:
		return "SyncTimedOut"
	case StateFailingOver:
		return "FailingOver"
	case StateFailedOver:
		return "FailedOver"
	case StateFailoverFailed:
		return "FailoverFailed"
	case StateReverting:
		return "Reverting"
	case StateReverted:
		return "Reverted"
	case StateAudited:
		return "Audited"
	default:
		return "Discovered"
	}
}

/*===============================================================
Data objects
*/

//One replica of a group as seen from the group metadata
type ReplicaInfo struct {
	Name       string
	Endpoint   string
	Role       ReplicaRole
	CommitMode CommitMode
}

//One availability group as observed on the queried node.
//OriginalMode is captured once at inventory time and never touched again,
//CurrentMode is what the ModeTransitionController mutates.
type ReplicaGroup struct {
	Name            string
	PrimaryEndpoint string
	LocalRole       ReplicaRole
	OriginalMode    CommitMode
	CurrentMode     CommitMode
	Replicas        []ReplicaInfo
}

//One database member of a group on a given node
type ReplicaGroupDatabase struct {
	DatabaseName string
	SyncState    SyncState
}

//Snapshot of one replica taken by the post failover audit
type ReplicaHealthRecord struct {
	GroupName        string
	ReplicaName      string
	Role             ReplicaRole
	FailoverMode     string
	AvailabilityMode string
	ConnectionState  string
}

//Record of one failover (or failback) command
type FailoverAttempt struct {
	GroupName      string
	TargetEndpoint string
	StartedAt      time.Time
	Duration       time.Duration
	Outcome        FailoverOutcome
	Err            error
}

//Everything that happened to one selected group during the run
type GroupResult struct {
	GroupName        string
	State            GroupState
	ModeTransitioned bool
	SyncOutcome      SyncOutcome
	FailoverOutcome  FailoverOutcome
	Attempt          *FailoverAttempt
	Reverted         bool
	RevertErr        error
	Health           []ReplicaHealthRecord
	Failback         *FailoverAttempt
	Err              error
}

type RunStatus int

const (
	RunNoop RunStatus = iota
	RunSucceeded
	RunPartialFailure
	RunAborted
)

func (s RunStatus) String() string {
	switch s {
	case RunNoop:
		return "no-op success"
	case RunSucceeded:
		return "fully succeeded"
	case RunPartialFailure:
		return "partially succeeded"
	case RunAborted:
		return "aborted before processing"
	default:
		return "no-op success"
	}
}

//Final report of one orchestration run
type RunSummary struct {
	Status    RunStatus
	Results   []GroupResult
	Succeeded int
	Failed    int
}
