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

package Ag

const (
	/*
	   Retrieve main information from the Availability Group DMVs
	*/

	Dml_get_server_property = "SELECT CAST(SERVERPROPERTY(@p1) AS NVARCHAR(256))"

	Dml_get_groups = `SELECT ag.name,
       ISNULL(ags.primary_replica, ''),
       ISNULL(ars.role_desc, 'UNKNOWN')
  FROM sys.availability_groups ag
  LEFT JOIN sys.dm_hadr_availability_group_states ags
    ON ag.group_id = ags.group_id
  LEFT JOIN sys.dm_hadr_availability_replica_states ars
    ON ag.group_id = ars.group_id AND ars.is_local = 1`

	Dml_get_replicas = `SELECT ar.replica_server_name,
       ar.endpoint_url,
       ar.availability_mode_desc,
       ISNULL(ars.role_desc, 'UNKNOWN')
  FROM sys.availability_replicas ar
  JOIN sys.availability_groups ag
    ON ar.group_id = ag.group_id
  LEFT JOIN sys.dm_hadr_availability_replica_states ars
    ON ar.group_id = ars.group_id AND ar.replica_id = ars.replica_id
 WHERE ag.name = @p1`

	Dml_get_group_databases = `SELECT DB_NAME(drs.database_id),
       drs.synchronization_state_desc
  FROM sys.dm_hadr_database_replica_states drs
  JOIN sys.availability_groups ag
    ON drs.group_id = ag.group_id
 WHERE ag.name = @p1
   AND drs.is_local = 1`

	Dml_get_health = `SELECT ag.name,
       ar.replica_server_name,
       ISNULL(ars.role_desc, 'UNKNOWN'),
       ar.failover_mode_desc,
       ar.availability_mode_desc,
       ISNULL(ars.connected_state_desc, 'DISCONNECTED')
  FROM sys.availability_replicas ar
  JOIN sys.availability_groups ag
    ON ar.group_id = ag.group_id
  LEFT JOIN sys.dm_hadr_availability_replica_states ars
    ON ar.group_id = ars.group_id AND ar.replica_id = ars.replica_id
 WHERE ag.name = @p1`

	/*
	   DDL templates, group and replica names are injected with QUOTENAME-safe
	   bracket quoting by the gateway
	*/

	Ddl_set_replica_mode = "ALTER AVAILABILITY GROUP %s MODIFY REPLICA ON N'%s' WITH (AVAILABILITY_MODE = %s)"
	Ddl_failover         = "ALTER AVAILABILITY GROUP %s FAILOVER"
)
