
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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	_ "github.com/denisenkom/go-mssqldb"
	log "github.com/sirupsen/logrus"

	DO "ag_failover_handler/internal/DataObjects"
	global "ag_failover_handler/internal/Global"
)

var agFailoverHandlerVersion = "1.0.2"

/*
Main function must contain only initial parameter, log system init and main object init
*/
func main() {
	//global setup of basic parameters
	const (
		Separator = string(os.PathSeparator)
	)

	var configFile string
	var configPath string

	//initialize help
	help := new(global.HelpText)
	help.Init()

	// By default performance collection is disabled
	global.Performance = false

	//return version and exit
	if len(os.Args) > 1 &&
		os.Args[1] == "--version" {
		fmt.Println("AG Failover Handler Version: ", agFailoverHandlerVersion)
		exitWithCode(0)
	}

	//Manage config and parameters from conf file [start]
	flag.StringVar(&configFile, "configfile", "", "Config file name for the script")
	flag.StringVar(&configPath, "configpath", "", "Config file path")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "\n%s\n", help.GetHelpText())
	}
	flag.Parse()

	//check for current params
	if len(os.Args) < 2 || configFile == "" {
		fmt.Println("You must at least pass the --configfile=xxx parameter ")
		exitWithCode(1)
	}
	var currPath, err = os.Getwd()

	if configPath != "" {
		if configPath[len(configPath)-1:] == Separator {
			currPath = configPath
		} else {
			currPath = configPath + Separator
		}
	} else {
		currPath = currPath + Separator + "config" + Separator
	}

	if err != nil {
		fmt.Print("Problem loading the config")
		exitWithCode(1)
	}

	//Return our full configuration from file
	var config = global.GetConfig(currPath + configFile)

	//Let us do a sanity check on the configuration to prevent most obvious issues and normalize some params
	if !config.SanityCheck() {
		exitWithCode(1)
	}

	//initialize the log system
	if !global.InitLog(config) {
		fmt.Println("Not able to initialize log system exiting")
		exitWithCode(1)
	}

	//Initialize the locker, one run at a time against the same pair of nodes
	locker := new(DO.RunLockerImpl)
	if !locker.Init(&config) {
		log.Error("Cannot initialize RunLocker")
		exitWithCode(1)
	}
	if !locker.SetLockFile() {
		fmt.Println("Cannot create a lock, exit")
		exitWithCode(1)
	}

	//should we track performance or not
	global.Performance = config.Global.Performance
	if global.Performance {
		global.PerformanceMapOrdered = global.NewOrderedMap()
		global.SetPerformanceObj("main", true, log.ErrorLevel)
	}

	/*
		main game starts here defining the gateway and the orchestrator
	*/
	gateway := DO.NewSQLGateway(config)

	var approval DO.ApprovalProvider
	if config.Failover.Interactive {
		approval = DO.NewConsoleApproval(os.Stdin, os.Stdout)
	} else {
		approval = DO.NewListApproval(config.Failover.ApprovedGroups)
	}

	orchestrator := DO.NewOrchestrator(config, gateway, approval)

	summary, err := orchestrator.Run(context.Background())

	if global.Performance {
		global.SetPerformanceObj("main", false, log.ErrorLevel)
		global.ReportPerformance()
	}

	gateway.CloseConnections()
	locker.RemoveLockFile()

	switch summary.Status {
	case DO.RunSucceeded, DO.RunNoop:
		exitWithCode(0)
	case DO.RunPartialFailure:
		log.Error("Run ended with ", summary.Failed, " group failure(s)")
		exitWithCode(2)
	default:
		if err != nil {
			log.Error("Run aborted: ", err.Error())
		}
		exitWithCode(1)
	}
}

func exitWithCode(errorCode int) {
	log.Debug("Exiting execution with code ", errorCode)
	os.Exit(errorCode)
}
