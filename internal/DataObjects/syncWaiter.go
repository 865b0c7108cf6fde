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
)

/*
SynchronizationWaiter polls the database level synchronization state of one
group until every member database reports SYNCHRONIZED or the timeout
elapses. The poll is the only long blocking operation of a run, it suspends
the whole run on purpose: synchronizing several groups concurrently against
shared quorum and storage is the interference this design serializes away.
*/
type SynchronizationWaiter struct {
	gateway      ClusterAdminGateway
	pollInterval time.Duration
}

func NewSynchronizationWaiter(gateway ClusterAdminGateway, pollInterval time.Duration) *SynchronizationWaiter {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &SynchronizationWaiter{gateway: gateway, pollInterval: pollInterval}
}

/*
WaitUntilSynchronized returns SyncReady the moment all databases of the group
report SYNCHRONIZED, and SyncTimedOut once the timeout elapses. A timeout is
NOT an error: it is surfaced to the caller, which owns the decision to fail
over anyway or to skip the group. The ticker and timer are released on every
exit path, context cancellation included.
*/
func (waiter *SynchronizationWaiter) WaitUntilSynchronized(ctx context.Context, node string, groupName string, timeout time.Duration) (SyncOutcome, error) {
	ticker := time.NewTicker(waiter.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	started := time.Now()
	for {
		databases, err := waiter.gateway.ListGroupDatabases(node, groupName)
		if err != nil {
			return SyncSkipped, err
		}

		if allSynchronized(databases) {
			log.Info("Group ", groupName, " fully synchronized after ", time.Since(started).Round(time.Millisecond))
			return SyncReady, nil
		}

		if log.GetLevel() == log.DebugLevel {
			for _, database := range databases {
				if database.SyncState != SyncSynchronized {
					log.Debug("Database ", database.DatabaseName, " in group ", groupName,
						" is ", database.SyncState.String())
				}
			}
		}

		select {
		case <-ctx.Done():
			return SyncSkipped, ctx.Err()
		case <-deadline.C:
			//highest severity we can log without killing the process, the
			//caller decides whether this blocks the failover
			log.Error("FATAL synchronization of group ", groupName, " not reached within ",
				timeout, ", databases are still unsynchronized")
			return SyncTimedOut, nil
		case <-ticker.C:
		}
	}
}

func allSynchronized(databases []ReplicaGroupDatabase) bool {
	for _, database := range databases {
		if database.SyncState != SyncSynchronized {
			return false
		}
	}
	return true
}
