package qvantum

// MetricNames is the full list of internal metrics requested on every
// normal poll cycle. The names are the pump's internal register names
// (use_internal_names=true on the values endpoint).
var MetricNames = []string{
	"bf1_l_min",                // Flow sensor DHW
	"bp1_pressure",             // Low pressure bar
	"bp1_temp",                 // Low pressure temperature
	"bp2_pressure",             // High pressure bar
	"bp2_temp",                 // High pressure temperature
	"bt1",                      // Outdoor
	"bt2",                      // Indoor
	"bt10",                     // Condenser outlet
	"bt11",                     // Heating medium flow
	"bt13",                     // Condenser inlet
	"bt14",                     // Exhaust air temperature
	"bt15",                     // Extract air temperature
	"bt20",                     // Discharge line
	"bt21",                     // Liquid line
	"bt22",                     // Evaporator inlet
	"bt23",                     // Suction line
	"bt30",                     // Accumulator tank
	"bt31",                     // DHW primary charge inlet
	"bt33",                     // DHW cold water inlet
	"bt34",                     // DHW hot water outlet
	"cal_heat_temp",            // Heating medium flow target
	"compressormeasuredspeed",  // Compressor speed
	"dhw_normal_start",         // Accumulator tank lower limit
	"dhw_normal_stop",          // Accumulator tank upper limit
	"fan0_10v",                 // Fan speed voltage
	"gp1_speed",                // Circulation pump
	"gp2_speed",                // DHW charge pump
	"picpin_relay_heat_l1",     // Additional power L1
	"picpin_relay_heat_l2",     // Additional power L2
	"picpin_relay_heat_l3",     // Additional power L3
	"picpin_relay_qm10",        // Diverting valve DHW/heating
	"qn8position",              // Shunt valve position
	"powertotal",               // Total power
	"compressorenergy",         // Compressor energy
	"additionalenergy",         // Additional energy
	"inputcurrent1",            // Input current L1
	"inputcurrent2",            // Input current L2
	"inputcurrent3",            // Input current L3
	"dhw_outl_temp_5",          // DHW outlet temperature
	"dhw_outl_temp_15",         // DHW outlet temperature 15
	"dhw_outl_temp_max",        // DHW outlet temperature max
	"dhw_prioritytime",         // DHW priority time
	"fanrpm",                   // Fan speed
	"hp_status",                // Heat pump status
	"tap_water_cap",            // Hot water capacity
	"op_mode",                  // Operation mode
	"op_mode_sensor",           // Operation mode sensor
	"enable_sc_dhw",            // SmartControl DHW
	"enable_sc_sh",             // SmartControl heating
	"use_adaptive",             // SmartControl
	"smart_sh_mode",            // Smart SH mode
	"smart_dhw_mode",           // Smart DHW mode
	"calc_suppy_cpr",           // Calculated supply CPR
	"btx",                      // BTX
	"bt4",                      // BT4
	"bt12",                     // External heating flow
	"dhwpower",                 // DHW power
	"heatingpower",             // Heating power
	"cooling_enabled",          // Cooling enabled
	"guide_des_temp",           // Guide desired temperature
	"guide_he",                 // Guide heating
	"price_region",             // Price region
	"room_temp_ext",            // External room temperature
	"dhwdemand",                // DHW demand
	"heatingdemand",            // Heating demand
	"coolingdemand",            // Cooling demand
	"heatingreleased",          // Heating released
	"coolingreleased",          // Cooling released
	"compressorreleased",       // Compressor released
	"additionreleased",         // Additional heat released
	"dhw_prioritytimeleft",     // DHW priority time remaining
	"heating_prioritytimeleft", // Heating priority time remaining
	"cooling_priotitytimeleft", // Cooling priority time remaining
	"switch_state",             // Switch state
	"dhwstop_temp",             // Accumulator tank stop temperature
	"dhwstart_temp",            // Accumulator tank start temperature
	"filtered60sec_outdoortemp", // Outdoor temperature (60s filtered)
	"max_freq_env",             // Max frequency environment
	"dhw_set",                  // DHW set
	"bp1_temp_20min_filter",    // BP1 temp 20min filter
	"max_bp2_env",              // Max BP2 environment
	"picpin_mask",              // PIC pin mask
	"man_mode",                 // Manual operation mode
	"op_man_dhw",               // Manual DHW
	"op_man_addition",          // Manual additional heat
	"op_man_cooling",           // Manual cooling
}

// FastMetricNames is the small volatile subset polled on the fast cadence.
// The fast poller is the authoritative source for these seven names; the
// normal snapshot never overrides them with fresher authority.
var FastMetricNames = []string{
	"powertotal",    // Total power consumption (W)
	"heatingpower",  // Heating power (kW)
	"dhwpower",      // DHW power (kW)
	"inputcurrent1", // Input current L1 (A)
	"inputcurrent2", // Input current L2 (A)
	"inputcurrent3", // Input current L3 (A)
	"bf1_l_min",     // Flow sensor DHW (l/m)
}
