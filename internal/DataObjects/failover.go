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
	"time"

	log "github.com/sirupsen/logrus"

	global "ag_failover_handler/internal/Global"
)

/*
FailoverExecutor issues the cutover command against the target node (the
secondary being promoted runs ALTER AVAILABILITY GROUP ... FAILOVER on
itself) and records wall clock timing. The gateway call is synchronous and
either returns or errors, no internal timeout and never a retry.
*/
type FailoverExecutor struct {
	gateway ClusterAdminGateway
}

func NewFailoverExecutor(gateway ClusterAdminGateway) *FailoverExecutor {
	return &FailoverExecutor{gateway: gateway}
}

func (executor *FailoverExecutor) Failover(groupName string, targetNode string) FailoverAttempt {
	log.Info("Initiating failover of group ", groupName, " to node ", targetNode)
	if global.Performance {
		global.SetPerformanceObj("failover_"+groupName, true, log.InfoLevel)
	}

	attempt := FailoverAttempt{
		GroupName:      groupName,
		TargetEndpoint: targetNode,
		StartedAt:      time.Now(),
	}

	err := executor.gateway.InitiateFailover(targetNode, groupName)
	attempt.Duration = time.Since(attempt.StartedAt)

	if global.Performance {
		global.SetPerformanceObj("failover_"+groupName, false, log.InfoLevel)
	}

	if err != nil {
		attempt.Outcome = FailoverFailed
		attempt.Err = err
		log.Error("Failover of group ", groupName, " failed after ",
			attempt.Duration.Round(time.Millisecond), ": ", err.Error())
		return attempt
	}

	attempt.Outcome = FailoverSucceeded
	log.Info("Failover of group ", groupName, " acknowledged in ",
		attempt.Duration.Round(time.Millisecond))
	return attempt
}
