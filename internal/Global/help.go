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

package Global

import "fmt"

type HelpText struct {
	inParams  [2]string
	license   string
	helpShort string
}

func (help *HelpText) Init() {
	help.inParams = [2]string{"configfile", "configPath"}
}
func (help *HelpText) PrintLicense() {
	fmt.Println(help.GetHelpText())
}

func (help *HelpText) GetHelpText() string {
	helpText := `agFailoverHandler

Parameters for the executable --configfile <file name> --configpath <full path> --help


Parameters in the config file:
global:
	logLevel = "info"
	logTarget = "stdout" #stdout | file
	logFile = "/tmp/ag_failover_handler.log"
	performance = true
	loglevel : [info] Define the log level to be used
	logTarget : [stdout] Can be either a file or stdout
	logFile : In case file for loging define the target
	performance : [false] Report the wall clock time of every phase (inventory, sync wait, failover, failback) at the end of the run
mssql
	port : [1433] Port used to connect
	host : [] Hostname or IP of the SQL Server instance holding the secondary replicas to be promoted
	user : [] User able to connect and run ALTER AVAILABILITY GROUP
	password : [] Password
	appName : [ag_failover_handler] Application name reported on the T-SQL connection
	connectTimeout : [30] Connection timeout in seconds, the run aborts if the instance does not answer within it
	trustCertificate : [false] Skip server certificate validation (lab use only)
failover
	targetNode : [] The node that will be promoted to primary, failover commands are issued against it
	syncTimeout : [300] Maximum seconds to wait for all databases of a group to reach the SYNCHRONIZED state before the cutover decision
	pollInterval : [10] Seconds between two synchronization state checks
	proceedOnSyncTimeout : [false] If true a group whose databases never synchronized is failed over anyway. Be aware this may fail over an unsynchronized group, which can mean data loss. The handler never decides this for you
	benchmark : [false] After a successful failover also fail back to the original primary and time both operations, used for capacity/SLA reporting
	interactive : [true] Ask a yes/no confirmation for each candidate group on the console
	approvedGroups : [] When interactive is false, the list of group names that are pre-approved for failover. Any group not in the list is skipped
	lockFilePath : [/tmp] Where the run lock file is written, prevents two handlers driving the same source/target pair at once
	lockTimeout : [600] Seconds after which a lock held by a live process is considered stale and overwritten
`
	return helpText
}
