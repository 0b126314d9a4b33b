// Package merge builds and runs the single statement that moves staged rows
// into the target table:
//
//	INSERT INTO target AS target (cols) OVERRIDING SYSTEM VALUE
//	SELECT cols FROM staging
//	ON CONFLICT (keys) DO NOTHING
//	ON CONFLICT (keys) DO UPDATE SET col = EXCLUDED.col, ... WHERE condition
//
// Plans are built before any database work so that an untranslatable merge
// condition fails without side effects.
package merge
