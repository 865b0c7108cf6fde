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
	"os"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	Separator = string(os.PathSeparator)
)

func CheckIfPathExists(path string) bool {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return true
	}
	return false
}

//====================================================

// Struct
type OrderedPerfMap struct {
	sync.RWMutex
	store map[string]PerfObject
	keys  []string
}

// Constructor
func NewOrderedMap() *OrderedPerfMap {
	return &OrderedPerfMap{
		store: map[string]PerfObject{},
		keys:  []string{},
	}
}

// Get will return the value associated with the key.
// If the key doesn't exist, the second return value will be false.
func (o *OrderedPerfMap) Get(key string) (PerfObject, bool) {
	o.Lock()
	defer o.Unlock()

	val, exists := o.store[key]
	return val, exists
}

// Set will store a key-value pair. If the key already exists,
// it will overwrite the existing key-value pair.
func (o *OrderedPerfMap) Set(key string, val PerfObject) {
	o.Lock()
	defer o.Unlock()

	if _, exists := o.store[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.store[key] = val
}

// Iterator is used to loop through the stored key-value pairs.
// The returned anonymous function returns the index, key and value.
func (o *OrderedPerfMap) Iterator() func() (*int, *string, PerfObject) {
	o.Lock()
	defer o.Unlock()

	var keys = o.keys

	j := 0

	return func() (_ *int, _ *string, _ PerfObject) {
		if j > len(keys)-1 {
			return
		}

		row := keys[j]
		j++

		return &[]int{j - 1}[0], &row, o.store[row]
	}
}

//====================================

//stats structure
type PerfObject struct {
	Name     string
	Time     [2]int64
	LogLevel log.Level
}

//perfomance settings and structure
var Performance bool
var PerformanceMapOrdered *OrderedPerfMap

func SetPerformanceObj(key string, start bool, logLevel log.Level) {
	var perfObj PerfObject
	valStat := [2]int64{}

	if val, exists := PerformanceMapOrdered.Get(key); !exists {
		perfObj = val
		perfObj.LogLevel = logLevel
		perfObj.Name = key
		valStat = [2]int64{0, 0}
	} else {
		perfObj = val
		valStat = perfObj.Time
	}

	if start {
		valStat[0] = time.Now().UnixNano()
	} else {
		valStat[1] = time.Now().UnixNano()
	}
	perfObj.Time = valStat

	PerformanceMapOrdered.Set(key, perfObj)
}

func ReportPerformance() {
	formatter := message.NewPrinter(language.English)

	if log.InfoLevel <= log.GetLevel() {
		log.Info("======== Reporting execution times (nanosec/ms)by phase ============")
	}
	it := PerformanceMapOrdered.Iterator()
	for {
		i, _, perfObj := it()
		if perfObj.Name != "" {
			time := perfObj.Time
			value := formatter.Sprintf("%d", time[1]-time[0])
			if perfObj.LogLevel <= log.GetLevel() {
				originalLogLevel := log.GetLevel()
				log.SetLevel(log.InfoLevel)
				log.Info("Phase: ", perfObj.Name, " = ", value, " ns ", strconv.FormatInt((time[1]-time[0])/1000000, 10), " ms")
				log.SetLevel(originalLogLevel)
			}
		}

		if i == nil {
			break
		}
	}
}
