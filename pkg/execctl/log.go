// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package execctl

import "github.com/sirupsen/logrus"

// SetLogger replaces the package-wide logrus logger used to build each
// Thread's per-thread log entry. Tests that want to assert on log
// output can install a logger with an in-memory hook; production
// callers leave the default standard logger in place.
var packageLogger = logrus.StandardLogger()

func SetLogger(l *logrus.Logger) {
	packageLogger = l
}

func (t *Thread) logArbitration(res ArbitrationResult, event StopInfo) {
	entry := t.log.WithFields(logrus.Fields{
		"stop_id":   t.stopID,
		"stop_kind": event.Kind,
		"stop_here": res.StopHere,
		"report":    res.Report,
	})
	if res.Explainer != nil {
		entry = entry.WithField("explainer", res.Explainer.String())
	}
	entry.Debug("arbitrated stop")
}
