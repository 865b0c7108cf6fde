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
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

/*
ModeTransitionController drives a group between asynchronous and synchronous
commit. Data loss free failover is only guaranteed under synchronous commit,
so asynchronous groups are upgraded before cutover and downgraded back
afterwards to preserve the operator's original topology intent.
*/
type ModeTransitionController struct {
	gateway ClusterAdminGateway
	node    string
}

func NewModeTransitionController(gateway ClusterAdminGateway, node string) *ModeTransitionController {
	return &ModeTransitionController{gateway: gateway, node: node}
}

//EnsureSynchronous is an idempotent no-op when the group is already
//synchronous. Otherwise every replica is set one at a time.
func (controller *ModeTransitionController) EnsureSynchronous(group *ReplicaGroup) error {
	if group.CurrentMode == ModeSynchronous {
		if log.GetLevel() == log.DebugLevel {
			log.Debug("Group ", group.Name, " already synchronous, nothing to do")
		}
		return nil
	}

	log.Info("Upgrading group ", group.Name, " to synchronous commit")
	for i := range group.Replicas {
		replica := &group.Replicas[i]
		if err := controller.gateway.SetReplicaMode(controller.node, group.Name, replica.Name, ModeSynchronous); err != nil {
			return errors.Wrapf(err, "cannot set replica %s of group %s to synchronous", replica.Name, group.Name)
		}
		replica.CommitMode = ModeSynchronous
	}

	group.CurrentMode = ModeSynchronous
	return nil
}

/*
Revert restores the mode captured at inventory time, only when it differs
from the current one. It is best effort cleanup: every replica is attempted
even if a previous one failed, and it runs for every selected group no
matter how the failover went.
*/
func (controller *ModeTransitionController) Revert(group *ReplicaGroup) error {
	if group.CurrentMode == group.OriginalMode {
		if log.GetLevel() == log.DebugLevel {
			log.Debug("Group ", group.Name, " mode unchanged, no revert needed")
		}
		return nil
	}

	log.Info("Reverting group ", group.Name, " to ", group.OriginalMode.String())
	var lastErr error
	for i := range group.Replicas {
		replica := &group.Replicas[i]
		if err := controller.gateway.SetReplicaMode(controller.node, group.Name, replica.Name, group.OriginalMode); err != nil {
			log.Error("Revert of replica ", replica.Name, " in group ", group.Name, " failed: ", err.Error())
			lastErr = err
			continue
		}
		replica.CommitMode = group.OriginalMode
	}

	if lastErr != nil {
		return errors.Wrapf(lastErr, "revert of group %s incomplete", group.Name)
	}

	group.CurrentMode = group.OriginalMode
	return nil
}
