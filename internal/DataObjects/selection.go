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
	"bufio"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

//FilterByRole is a pure predicate on the local role, input order preserved
func FilterByRole(groups []ReplicaGroup, role ReplicaRole) []ReplicaGroup {
	var candidates []ReplicaGroup
	for _, group := range groups {
		if group.LocalRole == role {
			candidates = append(candidates, group)
		}
	}
	return candidates
}

/*
ApprovalProvider is the pluggable yes/no step of the selection policy.
The interactive console prompt is one implementation, the pre-approved
name list from the config file is the other, so automated runs never
need a terminal.
*/
type ApprovalProvider interface {
	Approve(group ReplicaGroup) (bool, error)
}

type SelectionPolicy struct {
	provider ApprovalProvider
}

func NewSelectionPolicy(provider ApprovalProvider) *SelectionPolicy {
	return &SelectionPolicy{provider: provider}
}

//ConfirmSelection approves or rejects each candidate independently.
//Output preserves input order, an empty result is a valid no-op, not an error.
func (policy *SelectionPolicy) ConfirmSelection(candidates []ReplicaGroup) ([]ReplicaGroup, error) {
	var selected []ReplicaGroup
	for _, candidate := range candidates {
		approved, err := policy.provider.Approve(candidate)
		if err != nil {
			return nil, err
		}
		if approved {
			selected = append(selected, candidate)
		} else {
			log.Info("Group ", candidate.Name, " not approved, skipping")
		}
	}
	return selected, nil
}

/*===============================================================
Console approval
*/

type ConsoleApprovalImpl struct {
	Out     io.Writer
	scanner *bufio.Scanner
}

func NewConsoleApproval(in io.Reader, out io.Writer) *ConsoleApprovalImpl {
	return &ConsoleApprovalImpl{Out: out, scanner: bufio.NewScanner(in)}
}

func (console *ConsoleApprovalImpl) Approve(group ReplicaGroup) (bool, error) {
	fmt.Fprintf(console.Out, "Fail over availability group %s (current mode %s)? [y/N]: ",
		group.Name, group.OriginalMode.String())

	if !console.scanner.Scan() {
		if err := console.scanner.Err(); err != nil {
			return false, err
		}
		//end of input counts as a rejection
		return false, nil
	}

	answer := strings.ToLower(strings.TrimSpace(console.scanner.Text()))
	return answer == "y" || answer == "yes", nil
}

/*===============================================================
Pre-approved list
*/

type ListApprovalImpl struct {
	approved map[string]bool
}

func NewListApproval(names []string) *ListApprovalImpl {
	approved := make(map[string]bool, len(names))
	for _, name := range names {
		approved[name] = true
	}
	return &ListApprovalImpl{approved: approved}
}

func (list *ListApprovalImpl) Approve(group ReplicaGroup) (bool, error) {
	return list.approved[group.Name], nil
}
