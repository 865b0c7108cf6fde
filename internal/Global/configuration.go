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

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/Tusamarco/toml"
	log "github.com/sirupsen/logrus"
)

/*
Here we have the references objects and methods to deal with the configuration file
Configuration is written in toml using the libraries found in: github.com/Tusamarco/toml
Configuration file has 3 main section:
	[mssql]
		...
	[failover]
		...
    [global]
*/

//Main structure working as container for the configuration sections
type Configuration struct {
	Mssql    MssqlServer     `toml:"mssql"`
	Failover FailoverHandler `toml:"failover"`
	Global   GlobalScheduler `toml:"global"`
}

//SQL Server instance connection settings
type MssqlServer struct {
	Host             string
	Port             int
	User             string
	Password         string
	AppName          string
	ConnectTimeout   int
	TrustCertificate bool
}

//Failover orchestration settings
type FailoverHandler struct {
	TargetNode           string
	SyncTimeout          int
	PollInterval         int
	ProceedOnSyncTimeout bool
	Benchmark            bool
	Interactive          bool
	ApprovedGroups       []string
	LockFilePath         string
	LockTimeout          int
}

//Global handler conf
type GlobalScheduler struct {
	LogLevel    string
	LogTarget   string // #stdout | file
	LogFile     string
	Performance bool
}

func (conf *Configuration) fillDefaults() {
	conf.Mssql.Port = 1433
	conf.Mssql.AppName = "ag_failover_handler"
	conf.Mssql.ConnectTimeout = 30
	conf.Failover.SyncTimeout = 300
	conf.Failover.PollInterval = 10
	conf.Failover.Interactive = true
	conf.Failover.LockTimeout = 600
	conf.Global.LogLevel = "info"
	conf.Global.LogTarget = "stdout"
}

//Methods to return the config as map
func GetConfig(path string) Configuration {
	var config Configuration
	config.fillDefaults()
	if _, err := toml.DecodeFile(path, &config); err != nil {
		log.Error(err)
		syscall.Exit(2)
	}
	return config
}

func (conf *Configuration) SanityCheck() bool {
	//we cannot do anything without knowing where the instance is
	if conf.Mssql.Host == "" {
		log.SetReportCaller(true)
		log.Error("Configuration error mssql host cannot be empty")
		return false
	}

	if conf.Failover.TargetNode == "" {
		log.SetReportCaller(true)
		log.Error("Configuration error failover targetNode cannot be empty")
		return false
	}

	if conf.Failover.SyncTimeout <= 0 {
		log.Warn(fmt.Sprintf("SyncTimeout is invalid. Currently set to: |%d|  I will set to 300 ", conf.Failover.SyncTimeout))
		conf.Failover.SyncTimeout = 300
	}

	if conf.Failover.PollInterval < 1 {
		log.Warn(fmt.Sprintf("PollInterval is invalid. Currently set to: |%d|  I will set to 10 ", conf.Failover.PollInterval))
		conf.Failover.PollInterval = 10
	}

	//Check for correct LockFilePath
	if conf.Failover.LockFilePath == "" {
		log.Warn(fmt.Sprintf("LockFilePath is invalid. Currently set to: |%s|  I will set to /tmp/ ", conf.Failover.LockFilePath))
		conf.Failover.LockFilePath = "/tmp"
		if !CheckIfPathExists(conf.Failover.LockFilePath) {
			log.SetReportCaller(true)
			log.Error(fmt.Sprintf("LockFilePath is not accessible currently set to: |%s|", conf.Failover.LockFilePath))
			return false
		}
	}

	//a non interactive run without a pre-approved list is a guaranteed no-op
	if !conf.Failover.Interactive && len(conf.Failover.ApprovedGroups) == 0 {
		log.Warning("Non interactive run with an empty approvedGroups list, nothing will be selected")
	}

	//Check log file directory is reachable when logging on file
	if strings.ToLower(conf.Global.LogTarget) == "file" && conf.Global.LogFile != "" {
		idx := strings.LastIndex(conf.Global.LogFile, Separator)
		if idx > 0 {
			dir := conf.Global.LogFile[:idx]
			if !CheckIfPathExists(dir) {
				log.SetReportCaller(true)
				log.Error(fmt.Sprintf("Log file path is not accessible currently set to: |%s|", conf.Global.LogFile))
				return false
			}
		}
	}

	return true
}

//initialize the log
func InitLog(config Configuration) bool {

	//set a consistent output for the log no matter if file or stdout
	formatter := LogFormat{}
	formatter.TimestampFormat = "2006-01-02 15:04:05"
	log.SetFormatter(&formatter)

	if strings.ToLower(config.Global.LogTarget) == "stdout" {
		log.SetOutput(os.Stdout)
	} else if strings.ToLower(config.Global.LogTarget) == "file" &&
		config.Global.LogFile != "" {
		//try to initialize the log on file if it fails it will redirect to stdout
		file, err := os.OpenFile(config.Global.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Error("Error logging to file ", err.Error())
			return false
		}
	}

	//set log severity level
	switch level := strings.ToLower(config.Global.LogLevel); level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.ErrorLevel)
	}

	if log.GetLevel() == log.DebugLevel {
		log.Info("Go version: ", runtime.Version())
		log.Debug("Log initialized")
	}
	return true
}

type LogFormat struct {
	TimestampFormat string
}

func (f *LogFormat) Format(entry *log.Entry) ([]byte, error) {
	var b *bytes.Buffer

	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	b.WriteString("\x1b[" + strconv.Itoa(getColorByLevel(entry.Level)) + "m")
	b.WriteByte('[')
	b.WriteString(strings.ToUpper(entry.Level.String()))
	b.WriteString("]")
	b.WriteString("\x1b[0m")
	b.WriteByte(':')
	b.WriteString(entry.Time.Format(f.TimestampFormat))

	if entry.Message != "" {
		b.WriteString(" - ")
		b.WriteString(entry.Message)
	}

	if len(entry.Data) > 0 {
		b.WriteString(" || ")
	}
	for key, value := range entry.Data {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteByte('{')
		fmt.Fprint(b, value)
		b.WriteString("}, ")
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

const (
	colorRed    = 31
	colorYellow = 33
	colorBlue   = 36
	colorGray   = 34
	paniclevel  = 35
)

func getColorByLevel(level log.Level) int {
	switch level {
	case log.DebugLevel:
		return colorGray
	case log.WarnLevel:
		return colorYellow
	case log.ErrorLevel:
		return colorRed
	case log.PanicLevel, log.FatalLevel:
		return paniclevel
	default:
		return colorBlue
	}
}
