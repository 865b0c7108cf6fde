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
	log "github.com/sirupsen/logrus"

	global "ag_failover_handler/internal/Global"
)

/*
PostFailoverAuditor re-queries replica state after a failover. Audit is
observational: any failure here is logged and swallowed so it can never
block the cleanup of this group or the processing of the next one.
*/
type PostFailoverAuditor struct {
	gateway  ClusterAdminGateway
	executor *FailoverExecutor
}

func NewPostFailoverAuditor(gateway ClusterAdminGateway, executor *FailoverExecutor) *PostFailoverAuditor {
	return &PostFailoverAuditor{gateway: gateway, executor: executor}
}

func (auditor *PostFailoverAuditor) AuditState(node string, groupName string) []ReplicaHealthRecord {
	records, err := auditor.gateway.AuditHealth(node, groupName)
	if err != nil {
		log.Error("Audit of group ", groupName, " on node ", node, " failed: ", err.Error())
		return nil
	}

	for _, record := range records {
		log.Info("Audit group ", record.GroupName,
			" replica ", record.ReplicaName,
			" role ", record.Role.String(),
			" mode ", record.AvailabilityMode,
			" connection ", record.ConnectionState)
	}
	return records
}

/*
BenchmarkFailback fails the group back to its original primary and probes
health a second time, both timed. The two round trip figures are what the
capacity/SLA report is built from. Only meaningful after a successful
failover, the orchestrator guards that.
*/
func (auditor *PostFailoverAuditor) BenchmarkFailback(groupName string, originalPrimary string) (*FailoverAttempt, []ReplicaHealthRecord) {
	if originalPrimary == "" {
		log.Warning("Benchmark failback of group ", groupName, " skipped, original primary unknown")
		return nil, nil
	}

	log.Info("Benchmark mode, failing group ", groupName, " back to ", originalPrimary)
	if global.Performance {
		global.SetPerformanceObj("failback_"+groupName, true, log.InfoLevel)
	}

	attempt := auditor.executor.Failover(groupName, originalPrimary)

	if global.Performance {
		global.SetPerformanceObj("failback_"+groupName, false, log.InfoLevel)
	}

	//second probe is observational like the first one
	records := auditor.AuditState(originalPrimary, groupName)
	return &attempt, records
}
