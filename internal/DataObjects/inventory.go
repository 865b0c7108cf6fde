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
)

type ReplicaGroupInventory interface {
	ListGroups(node string) ([]ReplicaGroup, error)
}

type ReplicaGroupInventoryImpl struct {
	gateway ClusterAdminGateway
}

func NewReplicaGroupInventory(gateway ClusterAdminGateway) *ReplicaGroupInventoryImpl {
	return &ReplicaGroupInventoryImpl{gateway: gateway}
}

/*
ListGroups enumerates every availability group visible from the node and
classifies it by local role and commit mode.

Mode classification is conservative: if ANY replica of the group runs
asynchronous commit the whole group is classified asynchronous, because the
synchronous failover guarantee does not hold until all replicas are
synchronous. The captured OriginalMode is what the reversion step restores
at the end of the run.
*/
func (inv *ReplicaGroupInventoryImpl) ListGroups(node string) ([]ReplicaGroup, error) {
	infos, err := inv.gateway.ListGroups(node)
	if err != nil {
		//an unreachable node here is fatal to the run, let the caller decide
		return nil, err
	}

	groups := make([]ReplicaGroup, 0, len(infos))
	for _, info := range infos {
		replicas, err := inv.gateway.ListReplicas(node, info.Name)
		if err != nil {
			return nil, err
		}

		mode := ModeSynchronous
		for _, replica := range replicas {
			if replica.CommitMode == ModeAsynchronous {
				mode = ModeAsynchronous
				break
			}
		}

		group := ReplicaGroup{
			Name:            info.Name,
			PrimaryEndpoint: info.PrimaryEndpoint,
			LocalRole:       info.LocalRole,
			OriginalMode:    mode,
			CurrentMode:     mode,
			Replicas:        replicas,
		}
		groups = append(groups, group)

		if log.GetLevel() == log.DebugLevel {
			log.Debug("Discovered group ", group.Name,
				" local role ", group.LocalRole.String(),
				" mode ", group.OriginalMode.String(),
				" replicas ", len(group.Replicas))
		}
	}

	log.Info("Inventory found ", len(groups), " availability group(s) on node ", node)
	return groups, nil
}
