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
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	global "ag_failover_handler/internal/Global"
)

/*
RunLocker guards the whole orchestration with a file lock so two handler
processes never drive failovers against the same source/target pair at the
same time. Groups are already processed sequentially inside one run, the
lock extends that serialization across processes.
*/
type RunLocker interface {
	Init(config *global.Configuration) bool
	SetLockFile() bool
	RemoveLockFile() bool
}

type RunLockerImpl struct {
	LockId       string
	FilePath     string
	FullPath     string
	Pid          int
	TimeCreation int64
	Timeout      int64
}

func (locker *RunLockerImpl) Init(config *global.Configuration) bool {
	locker.Pid = os.Getpid()
	locker.TimeCreation = time.Now().UnixNano()
	locker.FilePath = config.Failover.LockFilePath
	locker.Timeout = int64(config.Failover.LockTimeout)

	// Lock id is the source/target pair, two runs on disjoint pairs may coexist
	locker.LockId = "ag_failover_" +
		strings.ReplaceAll(config.Mssql.Host, string(os.PathSeparator), "_") +
		"_to_" +
		strings.ReplaceAll(config.Failover.TargetNode, string(os.PathSeparator), "_")
	locker.FullPath = locker.FilePath + string(os.PathSeparator) + locker.LockId

	log.Info("RunLocker initialized on ", locker.FullPath)
	return true
}

//Check for an existing lock file and read PID and creation time from it
func (locker *RunLockerImpl) checkLockFileExists() (bool, int, int64) {
	var localPID int
	var localTime int64

	if _, err := os.Stat(locker.FullPath); err != nil {
		return false, 0, 0
	}

	f, err := os.Open(locker.FullPath)
	if err != nil {
		log.Error("Open file error: ", err)
		return false, 0, 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "PID:") {
			localPID, err = strconv.Atoi(line[4:])
			if err != nil {
				log.Warningf("Conversion error in PID %s", err.Error())
			}
		} else if strings.HasPrefix(line, "Time:") {
			localTime, err = strconv.ParseInt(line[5:], 10, 64)
			if err != nil {
				log.Warningf("Conversion error in Time %s", err.Error())
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error(err)
		return false, 0, 0
	}

	return true, localPID, localTime
}

// will check if PID is still valid (running process)
// and if not, if the time passed exceeded the lock removal rule.
// true means the stale lock can be overwritten.
func (locker *RunLockerImpl) evaluateLockForRemoval(exists bool, localPID int, localTime int64) bool {
	if !exists {
		return false
	}

	if locker.Pid == localPID {
		return false
	}

	process, err := os.FindProcess(localPID)
	if err != nil {
		log.Warningf(" Not able to retrieve informations for process %d. We assume lock is expired and process is long gone.", localPID)
		return true
	}

	//signal 0 only probes the process
	if err2 := process.Signal(syscall.Signal(0)); err2 != nil {
		log.Warningf(" Process %d is gone. We assume lock is expired.", localPID)
		return true
	}

	//holder is alive, apply the timeout rule
	lockTime := (locker.TimeCreation - localTime) / 1000000000
	if lockTime > locker.Timeout {
		log.Warningf("Lock timeout is set to %d seconds, current time spent is %d seconds, so we can remove the lock safely", locker.Timeout, lockTime)
		return true
	}
	log.Warningf("Lock timeout is set to %d seconds, current time spent is %d seconds, we cannot remove the lock safely", locker.Timeout, lockTime)

	return false
}

func (locker *RunLockerImpl) SetLockFile() bool {
	var toRemove bool

	if _, err := os.Stat(locker.FullPath); err == nil {
		toRemove = locker.evaluateLockForRemoval(locker.checkLockFileExists())
	}

	if _, err := os.Stat(locker.FullPath); err == nil && !toRemove {
		log.Errorf("A lock file named: %s  already exists.\n If this is a refuse of a dirty execution remove it manually to have the handler able to run\n", locker.FullPath)
		return false
	}

	file, err := os.OpenFile(locker.FullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Error(fmt.Sprintf("failed creating lock file: %s", err.Error()))
		return false
	}

	datawriter := bufio.NewWriter(file)
	_, _ = datawriter.WriteString("PID:" + strconv.Itoa(locker.Pid) + "\n")
	_, _ = datawriter.WriteString("Time:" + strconv.FormatInt(locker.TimeCreation, 10) + "\n")
	datawriter.Flush()
	file.Close()

	return true
}

func (locker *RunLockerImpl) RemoveLockFile() bool {
	if err := os.Remove(locker.FullPath); err != nil {
		log.Error("Cannot remove lock file ", locker.FullPath, " ", err.Error())
		return false
	}
	return true
}
