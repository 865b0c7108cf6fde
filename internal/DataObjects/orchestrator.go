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
	"time"

	log "github.com/sirupsen/logrus"

	global "ag_failover_handler/internal/Global"
)

/*
Orchestrator is the top level driver. Groups are processed strictly one at a
time, each fully through the state machine before the next begins. Errors in
one group are contained at the group boundary: the run carries on with the
next group, and reversion plus audit run for every selected group no matter
what happened before. The only fatal condition is an unreachable node during
the initial inventory.
*/
type Orchestrator struct {
	gateway   ClusterAdminGateway
	inventory ReplicaGroupInventory
	selection *SelectionPolicy
	mode      *ModeTransitionController
	waiter    *SynchronizationWaiter
	executor  *FailoverExecutor
	auditor   *PostFailoverAuditor

	node                 string
	targetNode           string
	syncTimeout          time.Duration
	proceedOnSyncTimeout bool
	benchmark            bool
}

func NewOrchestrator(config global.Configuration, gateway ClusterAdminGateway, approval ApprovalProvider) *Orchestrator {
	executor := NewFailoverExecutor(gateway)
	return &Orchestrator{
		gateway:              gateway,
		inventory:            NewReplicaGroupInventory(gateway),
		selection:            NewSelectionPolicy(approval),
		mode:                 NewModeTransitionController(gateway, config.Mssql.Host),
		waiter:               NewSynchronizationWaiter(gateway, time.Duration(config.Failover.PollInterval)*time.Second),
		executor:             executor,
		auditor:              NewPostFailoverAuditor(gateway, executor),
		node:                 config.Mssql.Host,
		targetNode:           config.Failover.TargetNode,
		syncTimeout:          time.Duration(config.Failover.SyncTimeout) * time.Second,
		proceedOnSyncTimeout: config.Failover.ProceedOnSyncTimeout,
		benchmark:            config.Failover.Benchmark,
	}
}

func (orchestrator *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{}

	if version, err := orchestrator.gateway.QueryServerProperty(orchestrator.node, "ProductVersion"); err == nil {
		log.Debug("Engine version on node ", orchestrator.node, ": ", version)
	}

	if global.Performance {
		global.SetPerformanceObj("inventory", true, log.InfoLevel)
	}
	groups, err := orchestrator.inventory.ListGroups(orchestrator.node)
	if global.Performance {
		global.SetPerformanceObj("inventory", false, log.InfoLevel)
	}
	if err != nil {
		log.Error("Cannot inventory availability groups on node ", orchestrator.node, ": ", err.Error())
		summary.Status = RunAborted
		return summary, err
	}

	//only groups where this node is a secondary can be promoted
	candidates := FilterByRole(groups, RoleSecondary)
	if len(candidates) == 0 {
		log.Info("No availability group with local secondary role on node ", orchestrator.node)
		summary.Status = RunNoop
		return summary, nil
	}

	selected, err := orchestrator.selection.ConfirmSelection(candidates)
	if err != nil {
		log.Error("Selection failed: ", err.Error())
		summary.Status = RunAborted
		return summary, err
	}
	if len(selected) == 0 {
		log.Info("No group approved, nothing to do")
		summary.Status = RunNoop
		return summary, nil
	}

	log.Info("Processing ", len(selected), " availability group(s) in approval order")
	for i := range selected {
		result := orchestrator.processGroup(ctx, &selected[i])
		summary.Results = append(summary.Results, result)
		if result.FailoverOutcome == FailoverSucceeded {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	if summary.Failed == 0 {
		summary.Status = RunSucceeded
	} else {
		summary.Status = RunPartialFailure
	}

	log.Info("Run finished: ", summary.Status.String(),
		" (", summary.Succeeded, " succeeded, ", summary.Failed, " failed)")
	return summary, nil
}

/*
processGroup walks one group through the whole state machine. The terminal
state is always Audited: reversion and audit are cleanup, not rewards for a
successful failover, because the topology must never be left skewed toward
synchronous commit when the operator's intent was asynchronous.
*/
func (orchestrator *Orchestrator) processGroup(ctx context.Context, group *ReplicaGroup) GroupResult {
	result := GroupResult{
		GroupName:       group.Name,
		State:           StateSelected,
		SyncOutcome:     SyncSkipped,
		FailoverOutcome: FailoverSkipped,
	}
	originalPrimary := group.PrimaryEndpoint

	log.Info("Processing group ", group.Name,
		" original mode ", group.OriginalMode.String())

	if err := orchestrator.mode.EnsureSynchronous(group); err != nil {
		log.Error("Group ", group.Name, " step mode-ensure: ", err.Error())
		result.Err = err
	} else {
		result.ModeTransitioned = group.OriginalMode == ModeAsynchronous
		result.State = StateModeEnsured

		result.State = StateSyncWaiting
		if global.Performance {
			global.SetPerformanceObj("sync_wait_"+group.Name, true, log.InfoLevel)
		}
		outcome, err := orchestrator.waiter.WaitUntilSynchronized(ctx, orchestrator.node, group.Name, orchestrator.syncTimeout)
		if global.Performance {
			global.SetPerformanceObj("sync_wait_"+group.Name, false, log.InfoLevel)
		}
		if err != nil {
			log.Error("Group ", group.Name, " step sync-wait: ", err.Error())
			result.Err = err
		} else {
			result.SyncOutcome = outcome
			if outcome == SyncReady {
				result.State = StateSyncReady
			} else {
				result.State = StateSyncTimedOut
			}

			//a timed out synchronization is a decision point, not an abort;
			//the config owns the choice of failing over unsynchronized
			if outcome == SyncReady || orchestrator.proceedOnSyncTimeout {
				if outcome == SyncTimedOut {
					log.Warning("Group ", group.Name,
						" failing over without full synchronization as per proceedOnSyncTimeout")
				}
				result.State = StateFailingOver
				attempt := orchestrator.executor.Failover(group.Name, orchestrator.targetNode)
				result.Attempt = &attempt
				result.FailoverOutcome = attempt.Outcome
				if attempt.Outcome == FailoverSucceeded {
					result.State = StateFailedOver
				} else {
					result.State = StateFailoverFailed
					result.Err = attempt.Err
				}
			} else {
				log.Warning("Group ", group.Name, " skipped, synchronization timed out")
			}
		}
	}

	//cleanup, always reached
	result.State = StateReverting
	if err := orchestrator.mode.Revert(group); err != nil {
		//reversion failure is logged, never re-raised
		log.Error("Group ", group.Name, " step revert: ", err.Error())
		result.RevertErr = err
	} else {
		result.Reverted = group.CurrentMode == group.OriginalMode
		result.State = StateReverted
	}

	auditNode := orchestrator.node
	if result.FailoverOutcome == FailoverSucceeded {
		auditNode = orchestrator.targetNode
	}
	result.Health = orchestrator.auditor.AuditState(auditNode, group.Name)

	if orchestrator.benchmark && result.FailoverOutcome == FailoverSucceeded {
		result.Failback, _ = orchestrator.auditor.BenchmarkFailback(group.Name, originalPrimary)
	}

	result.State = StateAudited
	log.Info("Group ", group.Name, " reached ", result.State.String(),
		" failover ", result.FailoverOutcome.String(),
		" sync ", result.SyncOutcome.String(),
		" reverted ", result.Reverted)
	return result
}
